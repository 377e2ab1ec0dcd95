package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceStatus is the occupancy of a physical wash machine.
type DeviceStatus string

const (
	DeviceStatusAvailable  DeviceStatus = "AVAILABLE"
	DeviceStatusProcessing DeviceStatus = "PROCESSING"
)

// Device is a physical wash machine, identified on the wire by DeviceNo.
type Device struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	DeviceNo  string       `gorm:"uniqueIndex;size:64;not null" json:"deviceNo"`
	Name      string       `gorm:"size:256" json:"name"`
	StationID string       `gorm:"size:36;index" json:"stationId"`
	Status    DeviceStatus `gorm:"size:32;not null;default:AVAILABLE" json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
