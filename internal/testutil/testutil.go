// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wash-sync-backend/internal/db"
	"wash-sync-backend/internal/model"
)

// NewSQLite opens a private in-memory SQLite database with every table migrated.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// SeedWash creates a device and an order with one item on that device.
func SeedWash(t *testing.T, gormDB *gorm.DB, incrementID int64, status model.OrderStatus, deviceNo string) (*model.Order, *model.OrderItem, *model.Device) {
	t.Helper()

	device := &model.Device{DeviceNo: deviceNo, Name: "Machine " + deviceNo, StationID: "station-1", Status: model.DeviceStatusProcessing}
	var existing model.Device
	if err := gormDB.Where("device_no = ?", deviceNo).First(&existing).Error; err == nil {
		device = &existing
	} else {
		require.NoError(t, gormDB.Create(device).Error)
	}

	order := &model.Order{
		IncrementID:  incrementID,
		Status:       status,
		Type:         model.OrderTypeDefault,
		CustomerID:   "customer-1",
		CustomerName: "Jane",
		GrandTotal:   40000,
		Data:         map[string]interface{}{"stationId": "station-1"},
	}
	require.NoError(t, gormDB.Create(order).Error)

	item := &model.OrderItem{
		OrderID: order.ID,
		Data: map[string]interface{}{
			"deviceId":   device.ID,
			"deviceNo":   deviceNo,
			"washStatus": "START",
		},
	}
	require.NoError(t, gormDB.Create(item).Error)

	return order, item, device
}
