package store

import (
	"time"

	"gate-access-backend/internal/model"
)

// Subject identifies the entity a movement belongs to. The constructors are
// the only way to build one, so a movement can never carry a mixed or missing
// entity reference.
type Subject struct {
	entityType model.EntityType
	ref        string
}

// StudentSubject builds a Subject for a student.
func StudentSubject(ref string) Subject {
	return Subject{entityType: model.EntityStudent, ref: ref}
}

// GuestSubject builds a Subject for a guest.
func GuestSubject(ref string) Subject {
	return Subject{entityType: model.EntityGuest, ref: ref}
}

// VendorSubject builds a Subject for a vendor.
func VendorSubject(ref string) Subject {
	return Subject{entityType: model.EntityVendor, ref: ref}
}

// Type returns the entity type of the subject.
func (s Subject) Type() model.EntityType { return s.entityType }

// Ref returns the opaque entity reference.
func (s Subject) Ref() string { return s.ref }

// MovementFilter narrows a ledger listing. A zero Status means the ledger
// default: COMPLETED rows only. Pending-queue views must ask for PENDING
// explicitly; pending rows are requests, not movements, and never show up in
// ledger output unless requested.
type MovementFilter struct {
	EntityRef    string
	EntityType   model.EntityType
	MovementType model.MovementType
	Status       model.MovementStatus
	Limit        int
}

// VisitFilter narrows a visit-request listing.
type VisitFilter struct {
	StudentRef string
	Status     model.VisitStatus
	Limit      int
}

// Occupancy is the derived inside/outside state for one entity. An entity
// with no completed movements is inside by default, with a nil
// LastMovementTime.
type Occupancy struct {
	EntityRef        string              `json:"entity_ref"`
	EntityType       model.EntityType    `json:"entity_type,omitempty"`
	IsInside         bool                `json:"is_inside"`
	LastMovementTime *time.Time          `json:"last_movement_time,omitempty"`
	LastMovementType *model.MovementType `json:"last_movement_type,omitempty"`
}

// CodeFailure reports a guest whose entry-code issuance failed during an
// approval. The approval itself stands; the failure is surfaced per guest.
type CodeFailure struct {
	GuestID   string `json:"guest_id"`
	GuestName string `json:"guest_name"`
	Reason    string `json:"reason"`
}

// CodeSpace describes the entry-code pool: how many digits a code has and
// how many collision retries issuance may take before giving up on a guest.
type CodeSpace struct {
	Digits      int
	MaxAttempts int
}
