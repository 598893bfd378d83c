package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"

	"gorm.io/gorm"

	"gate-access-backend/internal/model"
)

// CreateVisitRequest persists a new PENDING visit request together with its
// guests in one transaction. Guests start with no entry code.
func (s *gormStore) CreateVisitRequest(ctx context.Context, req *model.GuestVisitRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("failed to create visit request: %w", err)
		}
		return nil
	})
}

// GetVisitRequest loads a visit request with its guests.
func (s *gormStore) GetVisitRequest(ctx context.Context, id string) (*model.GuestVisitRequest, error) {
	var req model.GuestVisitRequest
	err := s.db.WithContext(ctx).Preload("Guests").First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load visit request %s: %w", id, err)
	}
	return &req, nil
}

// ListVisitRequests returns visit requests newest-first.
func (s *gormStore) ListVisitRequests(ctx context.Context, filter VisitFilter) ([]model.GuestVisitRequest, error) {
	q := s.db.WithContext(ctx).Preload("Guests")
	if filter.StudentRef != "" {
		q = q.Where("student_id = ?", filter.StudentRef)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var requests []model.GuestVisitRequest
	if err := q.Order("created_at DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list visit requests: %w", err)
	}
	return requests, nil
}

// ResolveVisitRequest applies the one-shot PENDING -> APPROVED/REJECTED
// transition and, on approval, issues one unique entry code per guest.
//
// The status transition and code issuance are deliberately not one
// transaction: once the approval commits it stands, and a guest whose code
// write keeps colliding is reported in the returned CodeFailure slice rather
// than rolling the approval back. Approving a visit must not be blocked by a
// transient code-write failure for one guest.
func (s *gormStore) ResolveVisitRequest(ctx context.Context, id string, outcome model.VisitStatus, approverRef string, rejectionReason string) (*model.GuestVisitRequest, []CodeFailure, error) {
	if outcome != model.VisitApproved && outcome != model.VisitRejected {
		return nil, nil, fmt.Errorf("%w: outcome must be APPROVED or REJECTED, got %q", ErrInvalidTransition, outcome)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.GuestVisitRequest
		if err := tx.First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load visit request %s: %w", id, err)
		}
		if req.Status != model.VisitPending {
			return ErrInvalidTransition
		}

		updates := map[string]any{
			"status":      outcome,
			"approver_id": approverRef,
			"updated_at":  now(),
		}
		if outcome == model.VisitRejected {
			updates["rejection_reason"] = rejectionReason
		}

		res := tx.Model(&model.GuestVisitRequest{}).
			Where("id = ? AND status = ?", id, model.VisitPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to resolve visit request %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var failures []CodeFailure
	if outcome == model.VisitApproved {
		failures, err = s.issueEntryCodes(ctx, id)
		if err != nil {
			return nil, nil, err
		}
	}

	req, err := s.GetVisitRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return req, failures, nil
}

// issueEntryCodes assigns a fresh code to every guest of the request that
// still lacks one. Each assignment is its own small transaction with a
// collision pre-check, and the global unique index on entry_code catches the
// race two concurrent approvals can still lose; either signal triggers a
// retry with a new code, up to the configured attempt budget.
func (s *gormStore) issueEntryCodes(ctx context.Context, requestID string) ([]CodeFailure, error) {
	var guests []model.Guest
	if err := s.db.WithContext(ctx).
		Where("visit_request_id = ? AND entry_code IS NULL", requestID).
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("failed to list guests for request %s: %w", requestID, err)
	}

	var failures []CodeFailure
	for _, guest := range guests {
		if err := s.issueCode(ctx, guest.ID); err != nil {
			log.Printf("entry code issuance failed for guest %s (%s): %v", guest.ID, guest.Name, err)
			failures = append(failures, CodeFailure{
				GuestID:   guest.ID,
				GuestName: guest.Name,
				Reason:    err.Error(),
			})
		}
	}
	return failures, nil
}

// issueCode assigns one unique code to one guest, retrying on collision.
func (s *gormStore) issueCode(ctx context.Context, guestID string) error {
	for attempt := 0; attempt < s.codes.MaxAttempts; attempt++ {
		code, err := randomCode(s.codes.Digits)
		if err != nil {
			return fmt.Errorf("code generation failed: %w", err)
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&model.Guest{}).Where("entry_code = ?", code).Count(&n).Error; err != nil {
				return fmt.Errorf("collision check failed: %w", err)
			}
			if n > 0 {
				return errCollision
			}

			res := tx.Model(&model.Guest{}).
				Where("id = ? AND entry_code IS NULL", guestID).
				Update("entry_code", code)
			if res.Error != nil {
				if isUniqueViolation(res.Error) {
					return errCollision
				}
				return fmt.Errorf("code write failed: %w", res.Error)
			}
			// Zero rows means the guest already holds a code; nothing to do.
			return nil
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, errCollision) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w after %d attempts", ErrCodeIssuanceFailed, s.codes.MaxAttempts)
}

// errCollision is internal to the issuance retry loop.
var errCollision = errors.New("entry code collision")

// randomCode draws a zero-padded numeric code from the configured space.
func randomCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// FindGuestByCode resolves an entry code to its guest and visit request.
// Only guests of APPROVED requests resolve: code and approval are not written
// as one transactional fact, so the request status is filtered on
// defensively even though only approved guests should carry codes.
func (s *gormStore) FindGuestByCode(ctx context.Context, code string) (*model.GuestVisitRequest, *model.Guest, error) {
	var guest model.Guest
	err := s.db.WithContext(ctx).
		Joins("JOIN guest_visit_requests gvr ON gvr.id = guests.visit_request_id").
		Where("guests.entry_code = ? AND gvr.status = ?", code, model.VisitApproved).
		First(&guest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up entry code: %w", err)
	}

	req, err := s.GetVisitRequest(ctx, guest.VisitRequestID)
	if err != nil {
		return nil, nil, err
	}
	return req, &guest, nil
}
