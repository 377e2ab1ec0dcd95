package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"wash-sync-backend/internal/model"
)

// LogSync replaces the ledger row for (ObjectID, Type) with entry.
func (s *gormStore) LogSync(ctx context.Context, entry *model.SyncLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("object_id = ? AND type = ?", entry.ObjectID, entry.Type).
			Delete(&model.SyncLog{}).Error; err != nil {
			return fmt.Errorf("failed to clear sync log of %s %s: %w", entry.Type, entry.ObjectID, err)
		}
		entry.ID = 0
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to write sync log of %s %s: %w", entry.Type, entry.ObjectID, err)
		}
		return nil
	})
}

// IsRefunded reports whether a refund request for the order already reached the CRM.
func (s *gormStore) IsRefunded(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.SyncLog{}).
		Where("object_id = ? AND type = ? AND action = ? AND synced = ?",
			orderID, model.SyncTypeRefund, model.SyncActionSync, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check refund of order %s: %w", orderID, err)
	}
	return count > 0, nil
}

// UnsyncedLogs pages through failed sync attempts, oldest first.
func (s *gormStore) UnsyncedLogs(ctx context.Context, afterID uint, limit int, types []model.SyncType) ([]model.SyncLog, error) {
	q := s.db.WithContext(ctx).Where("synced = ? AND id > ?", false, afterID)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}

	var logs []model.SyncLog
	if err := q.Order("id ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to scan unsynced logs: %w", err)
	}
	return logs, nil
}

// SetExternalID stores (or clears, when externalID is nil) the CRM id of a record.
func (s *gormStore) SetExternalID(ctx context.Context, t model.SyncType, id string, externalID *string) error {
	var target interface{}
	switch t {
	case model.SyncTypeUser:
		target = &model.User{}
	case model.SyncTypeOrder:
		target = &model.Order{}
	case model.SyncTypeOrderItem:
		target = &model.OrderItem{}
	case model.SyncTypeOrderTransaction:
		target = &model.OrderTransaction{}
	case model.SyncTypeCampaign:
		target = &model.Campaign{}
	default:
		return fmt.Errorf("sync type %s has no external id column", t)
	}

	if err := s.db.WithContext(ctx).Model(target).
		Where("id = ?", id).
		Update("external_id", externalID).Error; err != nil {
		return fmt.Errorf("failed to set external id of %s %s: %w", t, id, err)
	}
	return nil
}
