package model

import "time"

// Vendor represents an external supplier or contractor in the entity directory.
type Vendor struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Company   string    `gorm:"size:128" json:"company"`
	Mobile    string    `gorm:"size:32" json:"mobile"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
