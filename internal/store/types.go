package store

import (
	"errors"
	"time"

	"gorm.io/datatypes"

	"wash-sync-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleTransition means the order left its allowed statuses before the write landed.
	ErrStaleTransition = errors.New("order is no longer in an allowed status")
)

// Transition is one atomic order/item/device mutation driven by a wash event.
type Transition struct {
	OrderID   string
	ItemID    string
	DeviceNo  string
	From      []model.OrderStatus
	To        model.OrderStatus
	OrderData datatypes.JSONMap
	ItemData  datatypes.JSONMap
}

// Cursor is a keyset position for oldest-first scans.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the scan has not started yet.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}
