package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gate-access-backend/internal/model"
)

const defaultListLimit = 100

// CreateMovement appends one row to the gate ledger. A student movement with
// no officer present starts PENDING; everything else is witnessed at the gate
// and starts COMPLETED. The duplicate-pending check and the insert run in one
// transaction, backed by a partial unique index on (student_id,
// movement_type) over pending rows so a race between two creates cannot slip
// a second pending request through.
func (s *gormStore) CreateMovement(ctx context.Context, subject Subject, movementType model.MovementType, officerRef *string, remarks string) (*model.MovementRecord, error) {
	rec := &model.MovementRecord{
		ID:           uuid.NewString(),
		MovementType: movementType,
		EntityType:   subject.Type(),
		Status:       model.MovementCompleted,
		OfficerID:    officerRef,
		Remarks:      remarks,
		CreatedAt:    now(),
	}

	ref := subject.Ref()
	switch subject.Type() {
	case model.EntityStudent:
		rec.StudentID = &ref
	case model.EntityGuest:
		rec.GuestID = &ref
	case model.EntityVendor:
		rec.VendorID = &ref
	default:
		return nil, fmt.Errorf("unknown entity type %q", subject.Type())
	}

	selfService := subject.Type() == model.EntityStudent && officerRef == nil
	if selfService {
		rec.Status = model.MovementPending
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if selfService {
			var n int64
			if err := tx.Model(&model.MovementRecord{}).
				Where("student_id = ? AND movement_type = ? AND status = ?", ref, movementType, model.MovementPending).
				Count(&n).Error; err != nil {
				return fmt.Errorf("pending lookup for student %s failed: %w", ref, err)
			}
			if n > 0 {
				return ErrDuplicateRequest
			}
		}

		if err := tx.Create(rec).Error; err != nil {
			if selfService && isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return fmt.Errorf("failed to append movement record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ResolveMovement applies the one-shot PENDING -> COMPLETED/REJECTED
// transition to a student request. The transition is a conditional update
// keyed on the current status, so of two officers racing on the same record
// exactly one wins and the other gets ErrInvalidTransition.
func (s *gormStore) ResolveMovement(ctx context.Context, id string, officerRef string, outcome model.MovementStatus, rejectionReason string) (*model.MovementRecord, error) {
	if outcome != model.MovementCompleted && outcome != model.MovementRejected {
		return nil, fmt.Errorf("%w: outcome must be COMPLETED or REJECTED, got %q", ErrInvalidTransition, outcome)
	}

	var rec model.MovementRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load movement %s: %w", id, err)
		}

		if rec.EntityType != model.EntityStudent || rec.Status != model.MovementPending {
			return ErrInvalidTransition
		}

		remarks := rec.Remarks
		if outcome == model.MovementRejected && rejectionReason != "" {
			if remarks != "" {
				remarks += "\n"
			}
			remarks += "rejected: " + rejectionReason
		}

		resolvedAt := now()
		res := tx.Model(&model.MovementRecord{}).
			Where("id = ? AND status = ?", id, model.MovementPending).
			Updates(map[string]any{
				"status":      outcome,
				"officer_id":  officerRef,
				"resolved_at": resolvedAt,
				"remarks":     remarks,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to resolve movement %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			// Another officer got there first.
			return ErrInvalidTransition
		}

		rec.Status = outcome
		rec.OfficerID = &officerRef
		rec.ResolvedAt = &resolvedAt
		rec.Remarks = remarks
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListMovements returns ledger rows newest-first by effective time. With no
// explicit status filter only COMPLETED rows are returned.
func (s *gormStore) ListMovements(ctx context.Context, filter MovementFilter) ([]model.MovementRecord, error) {
	status := filter.Status
	if status == "" {
		status = model.MovementCompleted
	}

	q := s.db.WithContext(ctx).Where("status = ?", status)
	if filter.EntityRef != "" {
		q = q.Where("student_id = ? OR guest_id = ? OR vendor_id = ?",
			filter.EntityRef, filter.EntityRef, filter.EntityRef)
	}
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.MovementType != "" {
		q = q.Where("movement_type = ?", filter.MovementType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []model.MovementRecord
	if err := q.Order("COALESCE(resolved_at, created_at) DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return records, nil
}
