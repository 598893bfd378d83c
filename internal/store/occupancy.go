package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"gate-access-backend/internal/model"
)

// GetOccupancy derives the inside/outside state for one entity from its most
// recent COMPLETED movement. PENDING and REJECTED rows never count. An entity
// with no completed movements is inside by default: a student who has never
// logged a movement is assumed to already be on campus.
func (s *gormStore) GetOccupancy(ctx context.Context, ref string) (*Occupancy, error) {
	var rec model.MovementRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", model.MovementCompleted).
		Where("student_id = ? OR guest_id = ? OR vendor_id = ?", ref, ref, ref).
		Order("COALESCE(resolved_at, created_at) DESC").
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		entityType, typeErr := s.resolveEntityType(ctx, ref)
		if typeErr != nil && !errors.Is(typeErr, ErrNotFound) {
			return nil, typeErr
		}
		return &Occupancy{EntityRef: ref, EntityType: entityType, IsInside: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to derive occupancy for %s: %w", ref, err)
	}

	t := rec.EffectiveTime()
	mt := rec.MovementType
	return &Occupancy{
		EntityRef:        ref,
		EntityType:       rec.EntityType,
		IsInside:         mt == model.MovementEntry,
		LastMovementTime: &t,
		LastMovementType: &mt,
	}, nil
}

// GetOccupancyBatch derives occupancy for many entities in one query: a
// grouped subquery finds each entity's max effective time among COMPLETED
// movements and joins back to the matching rows, so the result is one row per
// entity rather than the whole ledger history. With no refs given every known
// entity is covered - students, vendors, and guests of approved visits -
// which is the dashboard path, so per-entity queries are out.
func (s *gormStore) GetOccupancyBatch(ctx context.Context, refs []string) (map[string]Occupancy, error) {
	known, err := s.knownEntities(ctx, refs)
	if err != nil {
		return nil, err
	}

	const entityRefExpr = "COALESCE(student_id, guest_id, vendor_id)"
	latest := s.db.Model(&model.MovementRecord{}).
		Select(entityRefExpr+" AS entity_ref, MAX(COALESCE(resolved_at, created_at)) AS latest_at").
		Where("status = ?", model.MovementCompleted).
		Group(entityRefExpr)
	if len(refs) > 0 {
		latest = latest.Where(entityRefExpr+" IN ?", refs)
	}

	var records []model.MovementRecord
	if err := s.db.WithContext(ctx).Model(&model.MovementRecord{}).
		Joins("JOIN (?) latest ON COALESCE(movement_records.student_id, movement_records.guest_id, movement_records.vendor_id) = latest.entity_ref "+
			"AND COALESCE(movement_records.resolved_at, movement_records.created_at) = latest.latest_at", latest).
		Where("movement_records.status = ?", model.MovementCompleted).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to scan ledger for occupancy: %w", err)
	}

	result := make(map[string]Occupancy, len(known))
	for _, rec := range records {
		ref := rec.EntityRef()
		if _, tracked := known[ref]; !tracked {
			continue
		}
		// Two rows can tie on the exact same effective time; first one wins.
		if _, seen := result[ref]; seen {
			continue
		}
		t := rec.EffectiveTime()
		mt := rec.MovementType
		result[ref] = Occupancy{
			EntityRef:        ref,
			EntityType:       rec.EntityType,
			IsInside:         mt == model.MovementEntry,
			LastMovementTime: &t,
			LastMovementType: &mt,
		}
	}

	// Entities with no completed movements are inside by default.
	for ref, entityType := range known {
		if _, seen := result[ref]; !seen {
			result[ref] = Occupancy{EntityRef: ref, EntityType: entityType, IsInside: true}
		}
	}
	return result, nil
}

// knownEntities maps the requested refs (or, with none given, the whole
// directory) to their entity types.
func (s *gormStore) knownEntities(ctx context.Context, refs []string) (map[string]model.EntityType, error) {
	known := make(map[string]model.EntityType)

	studentQ := s.db.WithContext(ctx).Model(&model.Person{}).Where("role = ?", model.RoleStudent)
	vendorQ := s.db.WithContext(ctx).Model(&model.Vendor{})
	guestQ := s.db.WithContext(ctx).Model(&model.Guest{}).
		Joins("JOIN guest_visit_requests gvr ON gvr.id = guests.visit_request_id").
		Where("gvr.status = ?", model.VisitApproved)
	if len(refs) > 0 {
		studentQ = studentQ.Where("id IN ?", refs)
		vendorQ = vendorQ.Where("id IN ?", refs)
		guestQ = guestQ.Where("guests.id IN ?", refs)
	}

	var studentIDs []string
	if err := studentQ.Pluck("id", &studentIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	for _, id := range studentIDs {
		known[id] = model.EntityStudent
	}

	var vendorIDs []string
	if err := vendorQ.Pluck("id", &vendorIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	for _, id := range vendorIDs {
		known[id] = model.EntityVendor
	}

	var guestIDs []string
	if err := guestQ.Pluck("guests.id", &guestIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	for _, id := range guestIDs {
		known[id] = model.EntityGuest
	}

	return known, nil
}
