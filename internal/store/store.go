package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gate-access-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Entity directory (read-mostly reference data).
	UpsertPersons(ctx context.Context, persons []model.Person) error
	UpsertVendors(ctx context.Context, vendors []model.Vendor) error
	GetPerson(ctx context.Context, ref string) (*model.Person, error)
	ListPersons(ctx context.Context, role model.PersonRole) ([]model.Person, error)
	ListVendors(ctx context.Context) ([]model.Vendor, error)
	EntityExists(ctx context.Context, ref string, entityType model.EntityType) (bool, error)
	PersonExists(ctx context.Context, ref string) (bool, error)
	GetDisplayName(ctx context.Context, ref string) (string, error)

	// Movement ledger.
	CreateMovement(ctx context.Context, subject Subject, movementType model.MovementType, officerRef *string, remarks string) (*model.MovementRecord, error)
	ResolveMovement(ctx context.Context, id string, officerRef string, outcome model.MovementStatus, rejectionReason string) (*model.MovementRecord, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]model.MovementRecord, error)

	// Occupancy (derived from the ledger, never stored).
	GetOccupancy(ctx context.Context, ref string) (*Occupancy, error)
	GetOccupancyBatch(ctx context.Context, refs []string) (map[string]Occupancy, error)

	// Guest visit workflow.
	CreateVisitRequest(ctx context.Context, req *model.GuestVisitRequest) error
	GetVisitRequest(ctx context.Context, id string) (*model.GuestVisitRequest, error)
	ListVisitRequests(ctx context.Context, filter VisitFilter) ([]model.GuestVisitRequest, error)
	ResolveVisitRequest(ctx context.Context, id string, outcome model.VisitStatus, approverRef string, rejectionReason string) (*model.GuestVisitRequest, []CodeFailure, error)
	FindGuestByCode(ctx context.Context, code string) (*model.GuestVisitRequest, *model.Guest, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	codes CodeSpace
}

// NewGormStore creates a new GORM-backed store. Zero values in codes fall
// back to a 4-digit space with 25 attempts.
func NewGormStore(db *gorm.DB, codes CodeSpace) Store {
	if codes.Digits <= 0 {
		codes.Digits = 4
	}
	if codes.MaxAttempts <= 0 {
		codes.MaxAttempts = 25
	}
	return &gormStore{db: db, codes: codes}
}

// DB exposes the underlying gorm handle for the subscription handlers and
// the alert worker pool.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// UpsertPersons inserts or refreshes directory persons keyed by id.
func (s *gormStore) UpsertPersons(ctx context.Context, persons []model.Person) error {
	if len(persons) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "room", "mobile", "updated_at"}),
	}).Create(&persons).Error; err != nil {
		return fmt.Errorf("batch upsert persons failed: %w", err)
	}
	return nil
}

// UpsertVendors inserts or refreshes directory vendors keyed by id.
func (s *gormStore) UpsertVendors(ctx context.Context, vendors []model.Vendor) error {
	if len(vendors) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "company", "mobile", "updated_at"}),
	}).Create(&vendors).Error; err != nil {
		return fmt.Errorf("batch upsert vendors failed: %w", err)
	}
	return nil
}

// GetPerson loads one directory person.
func (s *gormStore) GetPerson(ctx context.Context, ref string) (*model.Person, error) {
	var person model.Person
	err := s.db.WithContext(ctx).First(&person, "id = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// ListPersons returns directory persons, optionally narrowed to one role.
func (s *gormStore) ListPersons(ctx context.Context, role model.PersonRole) ([]model.Person, error) {
	q := s.db.WithContext(ctx).Order("name")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var persons []model.Person
	if err := q.Find(&persons).Error; err != nil {
		return nil, err
	}
	return persons, nil
}

// ListVendors returns all directory vendors.
func (s *gormStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	var vendors []model.Vendor
	if err := s.db.WithContext(ctx).Order("name").Find(&vendors).Error; err != nil {
		return nil, err
	}
	return vendors, nil
}

// EntityExists reports whether ref names a known entity of the given type.
// Students live in the persons table, vendors in the vendors table. A guest
// only counts once its visit request is APPROVED, the same notion of "known
// guest" the batch occupancy view uses; guests of pending or rejected visits
// have no business at the gate.
func (s *gormStore) EntityExists(ctx context.Context, ref string, entityType model.EntityType) (bool, error) {
	var n int64
	var err error
	switch entityType {
	case model.EntityStudent:
		err = s.db.WithContext(ctx).Model(&model.Person{}).
			Where("id = ? AND role = ?", ref, model.RoleStudent).Count(&n).Error
	case model.EntityGuest:
		err = s.db.WithContext(ctx).Model(&model.Guest{}).
			Joins("JOIN guest_visit_requests gvr ON gvr.id = guests.visit_request_id").
			Where("guests.id = ? AND gvr.status = ?", ref, model.VisitApproved).Count(&n).Error
	case model.EntityVendor:
		err = s.db.WithContext(ctx).Model(&model.Vendor{}).
			Where("id = ?", ref).Count(&n).Error
	default:
		return false, fmt.Errorf("unknown entity type %q", entityType)
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PersonExists reports whether ref names any directory person, whatever the
// role. Used to vet officers and visit approvers.
func (s *gormStore) PersonExists(ctx context.Context, ref string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Person{}).Where("id = ?", ref).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetDisplayName resolves an entity reference to a human-readable name,
// checking persons, then guests, then vendors.
func (s *gormStore) GetDisplayName(ctx context.Context, ref string) (string, error) {
	var person model.Person
	err := s.db.WithContext(ctx).Select("name").First(&person, "id = ?", ref).Error
	if err == nil {
		return person.Name, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var guest model.Guest
	err = s.db.WithContext(ctx).Select("name").First(&guest, "id = ?", ref).Error
	if err == nil {
		return guest.Name, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var vendor model.Vendor
	err = s.db.WithContext(ctx).Select("name").First(&vendor, "id = ?", ref).Error
	if err == nil {
		return vendor.Name, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	return "", err
}

// resolveEntityType finds which directory table ref belongs to.
func (s *gormStore) resolveEntityType(ctx context.Context, ref string) (model.EntityType, error) {
	for _, et := range []model.EntityType{model.EntityStudent, model.EntityGuest, model.EntityVendor} {
		ok, err := s.EntityExists(ctx, ref, et)
		if err != nil {
			return "", err
		}
		if ok {
			return et, nil
		}
	}
	return "", ErrNotFound
}

// now returns the wall clock in UTC; split out so tests can reason about
// ordering without mocking time.
func now() time.Time {
	return time.Now().UTC()
}
