package model

import "time"

// MovementType is the direction of a gate movement.
type MovementType string

const (
	MovementEntry MovementType = "ENTRY"
	MovementExit  MovementType = "EXIT"
)

// EntityType classifies who a movement record belongs to.
type EntityType string

const (
	EntityStudent EntityType = "STUDENT"
	EntityGuest   EntityType = "GUEST"
	EntityVendor  EntityType = "VENDOR"
)

// MovementStatus is the lifecycle state of a movement record. PENDING is only
// ever reachable for student self-service requests; guest and vendor movements
// are logged by an officer at the gate and start out COMPLETED.
type MovementStatus string

const (
	MovementPending   MovementStatus = "PENDING"
	MovementCompleted MovementStatus = "COMPLETED"
	MovementRejected  MovementStatus = "REJECTED"
)

// MovementRecord is one row of the gate ledger. Rows are append-only: a
// PENDING row transitions exactly once to COMPLETED or REJECTED and is never
// edited afterwards. Exactly one of StudentID/GuestID/VendorID is set,
// matching EntityType.
type MovementRecord struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	MovementType MovementType   `gorm:"size:8;not null;index" json:"movement_type"`
	EntityType   EntityType     `gorm:"size:8;not null;index" json:"entity_type"`
	StudentID    *string        `gorm:"size:36;index" json:"student_ref,omitempty"`
	GuestID      *string        `gorm:"size:36;index" json:"guest_ref,omitempty"`
	VendorID     *string        `gorm:"size:36;index" json:"vendor_ref,omitempty"`
	Status       MovementStatus `gorm:"size:12;not null;index" json:"status"`
	OfficerID    *string        `gorm:"size:36" json:"officer_ref,omitempty"`
	Remarks      string         `gorm:"size:512" json:"remarks"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
	ResolvedAt   *time.Time     `gorm:"index" json:"resolved_at,omitempty"`
}

// EntityRef returns whichever entity reference is populated.
func (m *MovementRecord) EntityRef() string {
	switch {
	case m.StudentID != nil:
		return *m.StudentID
	case m.GuestID != nil:
		return *m.GuestID
	case m.VendorID != nil:
		return *m.VendorID
	}
	return ""
}

// EffectiveTime is the timestamp a record is ordered by: resolution time once
// an officer has acted on it, creation time before that. Occupancy and the
// ledger view both sort on this.
func (m *MovementRecord) EffectiveTime() time.Time {
	if m.ResolvedAt != nil {
		return *m.ResolvedAt
	}
	return m.CreatedAt
}
