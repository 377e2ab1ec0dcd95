package store

import (
	"context"

	"gorm.io/gorm"

	"wash-sync-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Wash lifecycle.
	FindActiveOrder(ctx context.Context, incrementID int64) (*model.Order, error)
	FindOrderItem(ctx context.Context, orderID, deviceNo string) (*model.OrderItem, error)
	ApplyTransition(ctx context.Context, t Transition) (*model.Device, error)
	AppendDeviceLog(ctx context.Context, entry *model.DeviceLog) error
	ListDevices(ctx context.Context, stationID string) ([]model.Device, error)

	// Entities pushed to the CRM.
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderItem(ctx context.Context, id string) (*model.OrderItem, error)
	GetTransaction(ctx context.Context, id string) (*model.OrderTransaction, error)
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	OrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error)
	OrderTransactions(ctx context.Context, orderID string) ([]model.OrderTransaction, error)
	SetExternalID(ctx context.Context, t model.SyncType, id string, externalID *string) error

	// Sync ledger.
	LogSync(ctx context.Context, entry *model.SyncLog) error
	IsRefunded(ctx context.Context, orderID string) (bool, error)

	// Reconciliation scans, oldest first.
	UnsyncedUsers(ctx context.Context, after Cursor, limit int) ([]model.User, error)
	UnsyncedOrders(ctx context.Context, after Cursor, limit int) ([]model.Order, error)
	UnsyncedLogs(ctx context.Context, afterID uint, limit int, types []model.SyncType) ([]model.SyncLog, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying handle for handlers that own simple CRUD.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}
