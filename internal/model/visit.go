package model

import "time"

// VisitStatus is the lifecycle state of a guest visit request.
type VisitStatus string

const (
	VisitPending  VisitStatus = "PENDING"
	VisitApproved VisitStatus = "APPROVED"
	VisitRejected VisitStatus = "REJECTED"
	// VisitCompleted and VisitExpired are downstream bookkeeping states
	// applied once all movements for a visit have finished; nothing in the
	// approval flow produces them.
	VisitCompleted VisitStatus = "COMPLETED"
	VisitExpired   VisitStatus = "EXPIRED"
)

// GuestVisitRequest is a student's request to host one or more guests on a
// given date. RoomSnapshot and MobileSnapshot are copied from the student's
// directory row at submission time and never re-read, so the request reflects
// the student's details as they were when it was filed.
type GuestVisitRequest struct {
	ID               string      `gorm:"primaryKey;size:36" json:"id"`
	StudentID        string      `gorm:"size:36;not null;index" json:"student_ref"`
	Purpose          string      `gorm:"size:256;not null" json:"purpose"`
	ArrivalDate      time.Time   `gorm:"not null" json:"arrival_date"`
	EntryWindowStart time.Time   `gorm:"not null" json:"entry_window_start"`
	ExitWindowEnd    time.Time   `gorm:"not null" json:"exit_window_end"`
	VehicleNumbers   string      `gorm:"size:128" json:"vehicle_numbers"`
	RoomSnapshot     string      `gorm:"size:32" json:"room_snapshot"`
	MobileSnapshot   string      `gorm:"size:32" json:"mobile_snapshot"`
	Status           VisitStatus `gorm:"size:12;not null;index" json:"status"`
	ApproverID       *string     `gorm:"size:36" json:"approver_ref,omitempty"`
	RejectionReason  string      `gorm:"size:256" json:"rejection_reason,omitempty"`
	CreatedAt        time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"not null" json:"updated_at"`

	// Associations
	Guests []Guest `gorm:"foreignKey:VisitRequestID" json:"guests"`
}

// Guest is one visitor under a visit request. EntryCode is issued once on
// approval and is unique across the whole guest population, enforced both by
// the issuance retry loop and by the unique index.
type Guest struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	VisitRequestID string    `gorm:"size:36;not null;index" json:"visit_request_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Relation       string    `gorm:"size:64;not null" json:"relation"`
	Mobile         string    `gorm:"size:32" json:"mobile"`
	EntryCode      *string   `gorm:"size:16;uniqueIndex" json:"entry_code,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}
