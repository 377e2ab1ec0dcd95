package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wash-sync-backend/internal/model"
)

// FindActiveOrder returns the order with the given increment id if it is still PENDING or PROCESSING.
func (s *gormStore) FindActiveOrder(ctx context.Context, incrementID int64) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Where("increment_id = ? AND status IN ?", incrementID, model.ActiveOrderStatuses).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, "order %d", incrementID)
	}
	return &order, nil
}

// FindOrderItem returns the newest item of orderID running on deviceNo.
func (s *gormStore) FindOrderItem(ctx context.Context, orderID, deviceNo string) (*model.OrderItem, error) {
	var item model.OrderItem
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where(datatypes.JSONQuery("data").Equals(deviceNo, "deviceNo")).
		Order("created_at DESC").
		First(&item).Error
	if err != nil {
		return nil, notFound(err, "item of order %s on device %s", orderID, deviceNo)
	}
	return &item, nil
}

// ApplyTransition writes the order, item and device changes in one transaction.
// The order update only matches while the order is in t.From; otherwise nothing is written
// and ErrStaleTransition is returned. An unregistered device does not block the order:
// the returned device is nil in that case.
func (s *gormStore) ApplyTransition(ctx context.Context, t Transition) (*model.Device, error) {
	var released *model.Device
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status IN ?", t.OrderID, t.From).
			Updates(map[string]interface{}{
				"status": t.To,
				"data":   t.OrderData,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update order %s: %w", t.OrderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}

		if err := tx.Model(&model.OrderItem{}).
			Where("id = ?", t.ItemID).
			Update("data", t.ItemData).Error; err != nil {
			return fmt.Errorf("failed to update order item %s: %w", t.ItemID, err)
		}

		if err := tx.Model(&model.Device{}).
			Where("device_no = ?", t.DeviceNo).
			Update("status", model.DeviceStatusAvailable).Error; err != nil {
			return fmt.Errorf("failed to release device %s: %w", t.DeviceNo, err)
		}

		var device model.Device
		err := tx.Where("device_no = ?", t.DeviceNo).First(&device).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("failed to load device %s: %w", t.DeviceNo, err)
		}
		released = &device
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (s *gormStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err, "order %s", id)
	}
	return &order, nil
}

func (s *gormStore) GetOrderItem(ctx context.Context, id string) (*model.OrderItem, error) {
	var item model.OrderItem
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "order item %s", id)
	}
	return &item, nil
}

// GetTransaction returns a non-draft transaction.
func (s *gormStore) GetTransaction(ctx context.Context, id string) (*model.OrderTransaction, error) {
	var txn model.OrderTransaction
	err := s.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, model.TransactionStatusDraft).
		First(&txn).Error
	if err != nil {
		return nil, notFound(err, "transaction %s", id)
	}
	return &txn, nil
}

func (s *gormStore) OrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items of order %s: %w", orderID, err)
	}
	return items, nil
}

// OrderTransactions lists the non-draft transactions of an order.
func (s *gormStore) OrderTransactions(ctx context.Context, orderID string) ([]model.OrderTransaction, error) {
	var txns []model.OrderTransaction
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, model.TransactionStatusDraft).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of order %s: %w", orderID, err)
	}
	return txns, nil
}

// UnsyncedOrders pages through orders that never reached the CRM.
// Tokenize orders only count once completed; drafts never do.
func (s *gormStore) UnsyncedOrders(ctx context.Context, after Cursor, limit int) ([]model.Order, error) {
	q := s.db.WithContext(ctx).
		Where("external_id IS NULL").
		Where("((type <> ? AND status <> ?) OR (type = ? AND status = ?))",
			model.OrderTypeTokenize, model.OrderStatusDraft,
			model.OrderTypeTokenize, model.OrderStatusCompleted)
	q = afterCursor(q, after)

	var orders []model.Order
	if err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to scan unsynced orders: %w", err)
	}
	return orders, nil
}

func afterCursor(q *gorm.DB, after Cursor) *gorm.DB {
	if after.IsZero() {
		return q
	}
	return q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", fmt.Sprintf(format, args...), err)
}
