package model

import "time"

// OfficerSubscription holds a gate officer's browser push subscription, used
// to alert officers when a new pending student request lands in their queue.
type OfficerSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
