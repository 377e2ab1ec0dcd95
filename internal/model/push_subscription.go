package model

import "time"

// PushSubscription is a browser subscribed to "machine available" pushes.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	Devices []*Device `gorm:"many2many:subscription_device_mapping;"`
}
