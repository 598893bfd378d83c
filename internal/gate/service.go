package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gate-access-backend/internal/model"
	"gate-access-backend/internal/notify"
	"gate-access-backend/internal/store"
)

// Service is the single entry point for everything that touches the movement
// ledger or the visit workflow. It validates entity references against the
// directory before any write, forces the officer-present rule for guest and
// vendor movements, and fires the change/alert signals after successful
// mutations. The directory itself is read-only from the ledger's perspective.
type Service struct {
	store   store.Store
	changes *notify.Debouncer
	alerts  *notify.WorkerPool
}

// NewService creates the orchestrator. changes and alerts may be nil; both
// are best-effort side channels and a nil value simply disables them.
func NewService(s store.Store, changes *notify.Debouncer, alerts *notify.WorkerPool) *Service {
	return &Service{store: s, changes: changes, alerts: alerts}
}

// RecordMovementParams carries one movement creation request.
type RecordMovementParams struct {
	EntityType   model.EntityType
	MovementType model.MovementType
	EntityRef    string
	OfficerRef   *string
	Remarks      string
}

// RecordMovement validates and appends one ledger row. Student self-service
// (no officer) yields a PENDING request; a movement witnessed by an officer
// is COMPLETED on the spot. Guests and vendors never get a pending phase, so
// for them the officer is mandatory.
func (s *Service) RecordMovement(ctx context.Context, p RecordMovementParams) (*model.MovementRecord, error) {
	if p.MovementType != model.MovementEntry && p.MovementType != model.MovementExit {
		return nil, fmt.Errorf("%w: movement type must be ENTRY or EXIT, got %q", ErrValidation, p.MovementType)
	}
	if p.EntityRef == "" {
		return nil, fmt.Errorf("%w: entity ref is required", ErrValidation)
	}

	var subject store.Subject
	switch p.EntityType {
	case model.EntityStudent:
		subject = store.StudentSubject(p.EntityRef)
	case model.EntityGuest:
		subject = store.GuestSubject(p.EntityRef)
	case model.EntityVendor:
		subject = store.VendorSubject(p.EntityRef)
	default:
		return nil, fmt.Errorf("%w: entity type must be STUDENT, GUEST or VENDOR, got %q", ErrValidation, p.EntityType)
	}

	if p.EntityType != model.EntityStudent && p.OfficerRef == nil {
		return nil, fmt.Errorf("%w: %s movements require an officer at the gate", ErrValidation, strings.ToLower(string(p.EntityType)))
	}

	ok, err := s.store.EntityExists(ctx, p.EntityRef, p.EntityType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no %s with ref %s", ErrEntityNotFound, strings.ToLower(string(p.EntityType)), p.EntityRef)
	}

	if p.OfficerRef != nil {
		if err := s.requirePerson(ctx, *p.OfficerRef, "officer"); err != nil {
			return nil, err
		}
	}

	rec, err := s.store.CreateMovement(ctx, subject, p.MovementType, p.OfficerRef, p.Remarks)
	if err != nil {
		return nil, err
	}

	s.changes.Signal("movement_records")
	if rec.Status == model.MovementPending {
		s.alerts.Dispatch(rec.ID)
	}
	return rec, nil
}

// ResolveMovement lets an officer convert one PENDING student request to
// COMPLETED or REJECTED.
func (s *Service) ResolveMovement(ctx context.Context, id, officerRef string, outcome model.MovementStatus, rejectionReason string) (*model.MovementRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record id is required", ErrValidation)
	}
	if outcome != model.MovementCompleted && outcome != model.MovementRejected {
		return nil, fmt.Errorf("%w: outcome must be COMPLETED or REJECTED, got %q", ErrValidation, outcome)
	}
	if err := s.requirePerson(ctx, officerRef, "officer"); err != nil {
		return nil, err
	}

	rec, err := s.store.ResolveMovement(ctx, id, officerRef, outcome, rejectionReason)
	if err != nil {
		return nil, err
	}

	s.changes.Signal("movement_records")
	return rec, nil
}

// ListMovements proxies the ledger view.
func (s *Service) ListMovements(ctx context.Context, filter store.MovementFilter) ([]model.MovementRecord, error) {
	return s.store.ListMovements(ctx, filter)
}

// GetOccupancy derives the inside/outside state for one known entity.
func (s *Service) GetOccupancy(ctx context.Context, ref string) (*store.Occupancy, error) {
	occ, err := s.store.GetOccupancy(ctx, ref)
	if err != nil {
		return nil, err
	}
	if occ.EntityType == "" {
		// No movements and no directory row: the ref is simply unknown.
		return nil, fmt.Errorf("%w: no entity with ref %s", ErrEntityNotFound, ref)
	}
	return occ, nil
}

// GetOccupancyBatch derives occupancy for the given refs, or for every known
// entity when refs is empty.
func (s *Service) GetOccupancyBatch(ctx context.Context, refs []string) (map[string]store.Occupancy, error) {
	return s.store.GetOccupancyBatch(ctx, refs)
}

// VisitGuestParams describes one guest on a visit request.
type VisitGuestParams struct {
	Name     string
	Relation string
	Mobile   string
}

// CreateVisitParams carries one visit request creation.
type CreateVisitParams struct {
	StudentRef       string
	Purpose          string
	ArrivalDate      time.Time
	EntryWindowStart time.Time
	ExitWindowEnd    time.Time
	VehicleNumbers   string
	Guests           []VisitGuestParams
}

// CreateVisitRequest files a PENDING visit request. The student's room and
// mobile are snapshotted from the directory now; later profile edits do not
// rewrite history. Future visits are fine, the window is only checked for
// being well-formed.
func (s *Service) CreateVisitRequest(ctx context.Context, p CreateVisitParams) (*model.GuestVisitRequest, error) {
	if p.Purpose == "" {
		return nil, fmt.Errorf("%w: purpose is required", ErrValidation)
	}
	if len(p.Guests) == 0 {
		return nil, fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	for i, g := range p.Guests {
		if g.Name == "" || g.Relation == "" {
			return nil, fmt.Errorf("%w: guest %d needs a name and relation", ErrValidation, i+1)
		}
	}
	if p.EntryWindowStart.After(p.ExitWindowEnd) {
		return nil, fmt.Errorf("%w: entry window must not start after the exit window ends", ErrValidation)
	}

	student, err := s.store.GetPerson(ctx, p.StudentRef)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no student with ref %s", ErrEntityNotFound, p.StudentRef)
		}
		return nil, err
	}
	if student.Role != model.RoleStudent {
		return nil, fmt.Errorf("%w: no student with ref %s", ErrEntityNotFound, p.StudentRef)
	}

	req := &model.GuestVisitRequest{
		ID:               uuid.NewString(),
		StudentID:        student.ID,
		Purpose:          p.Purpose,
		ArrivalDate:      p.ArrivalDate,
		EntryWindowStart: p.EntryWindowStart,
		ExitWindowEnd:    p.ExitWindowEnd,
		VehicleNumbers:   p.VehicleNumbers,
		RoomSnapshot:     student.Room,
		MobileSnapshot:   student.Mobile,
		Status:           model.VisitPending,
	}
	for _, g := range p.Guests {
		req.Guests = append(req.Guests, model.Guest{
			ID:             uuid.NewString(),
			VisitRequestID: req.ID,
			Name:           g.Name,
			Relation:       g.Relation,
			Mobile:         g.Mobile,
		})
	}

	if err := s.store.CreateVisitRequest(ctx, req); err != nil {
		return nil, err
	}

	s.changes.Signal("guest_visit_requests")
	return req, nil
}

// ResolveVisitRequest approves or rejects a pending visit request. On
// approval each guest receives a unique entry code; per-guest issuance
// failures are returned alongside the approved request, not rolled into it.
func (s *Service) ResolveVisitRequest(ctx context.Context, id string, outcome model.VisitStatus, approverRef, rejectionReason string) (*model.GuestVisitRequest, []store.CodeFailure, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: request id is required", ErrValidation)
	}
	if outcome != model.VisitApproved && outcome != model.VisitRejected {
		return nil, nil, fmt.Errorf("%w: outcome must be APPROVED or REJECTED, got %q", ErrValidation, outcome)
	}
	ok, err := s.store.PersonExists(ctx, approverRef)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: no person with ref %s", ErrInvalidApprover, approverRef)
	}

	req, failures, err := s.store.ResolveVisitRequest(ctx, id, outcome, approverRef, rejectionReason)
	if err != nil {
		return nil, nil, err
	}

	s.changes.Signal("guest_visit_requests")
	return req, failures, nil
}

// GetVisitRequest loads one visit request with its guests.
func (s *Service) GetVisitRequest(ctx context.Context, id string) (*model.GuestVisitRequest, error) {
	return s.store.GetVisitRequest(ctx, id)
}

// ListVisitRequests proxies the visit-request listing.
func (s *Service) ListVisitRequests(ctx context.Context, filter store.VisitFilter) ([]model.GuestVisitRequest, error) {
	return s.store.ListVisitRequests(ctx, filter)
}

// FindGuestByCode resolves an entry code presented at the gate.
func (s *Service) FindGuestByCode(ctx context.Context, code string) (*model.GuestVisitRequest, *model.Guest, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	return s.store.FindGuestByCode(ctx, code)
}

// RegisterPersons upserts directory persons.
func (s *Service) RegisterPersons(ctx context.Context, persons []model.Person) error {
	for i := range persons {
		if persons[i].Name == "" {
			return fmt.Errorf("%w: person %d needs a name", ErrValidation, i+1)
		}
		switch persons[i].Role {
		case model.RoleStudent, model.RoleStaff, model.RoleOfficer:
		default:
			return fmt.Errorf("%w: person %d has unknown role %q", ErrValidation, i+1, persons[i].Role)
		}
		if persons[i].ID == "" {
			persons[i].ID = uuid.NewString()
		}
	}
	if err := s.store.UpsertPersons(ctx, persons); err != nil {
		return err
	}
	s.changes.Signal("persons")
	return nil
}

// RegisterVendors upserts directory vendors.
func (s *Service) RegisterVendors(ctx context.Context, vendors []model.Vendor) error {
	for i := range vendors {
		if vendors[i].Name == "" {
			return fmt.Errorf("%w: vendor %d needs a name", ErrValidation, i+1)
		}
		if vendors[i].ID == "" {
			vendors[i].ID = uuid.NewString()
		}
	}
	if err := s.store.UpsertVendors(ctx, vendors); err != nil {
		return err
	}
	s.changes.Signal("vendors")
	return nil
}

// requirePerson fails with ErrEntityNotFound when ref is not in the directory.
func (s *Service) requirePerson(ctx context.Context, ref, label string) error {
	if ref == "" {
		return fmt.Errorf("%w: %s ref is required", ErrValidation, label)
	}
	ok, err := s.store.PersonExists(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no %s with ref %s", ErrEntityNotFound, label, ref)
	}
	return nil
}
