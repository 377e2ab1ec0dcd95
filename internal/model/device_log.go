package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceLogType tells raw inbound bytes apart from parsed events.
type DeviceLogType string

const (
	DeviceLogTypeRaw     DeviceLogType = "RAW_WEBHOOK"
	DeviceLogTypeWebhook DeviceLogType = "WEBHOOK"
)

// DeviceLog is an append-only audit row for every inbound device payload.
type DeviceLog struct {
	ID        uint          `gorm:"primaryKey"`
	TraceID   string        `gorm:"size:36;not null;index"`
	Type      DeviceLogType `gorm:"size:16;not null"`
	DeviceNo  string        `gorm:"size:64;index"`
	OrderNo   string        `gorm:"size:64;index"`
	Data      datatypes.JSONMap
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
}
