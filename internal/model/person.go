package model

import "time"

// PersonRole classifies a directory person.
type PersonRole string

const (
	RoleStudent PersonRole = "student"
	RoleStaff   PersonRole = "staff"
	RoleOfficer PersonRole = "officer"
)

// Person represents a student or staff member in the entity directory.
type Person struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Role      PersonRole `gorm:"size:16;not null;index" json:"role"`
	Room      string     `gorm:"size:32" json:"room"`
	Mobile    string     `gorm:"size:32" json:"mobile"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}
