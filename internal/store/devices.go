package store

import (
	"context"
	"fmt"

	"wash-sync-backend/internal/model"
)

// AppendDeviceLog stores one audit row.
func (s *gormStore) AppendDeviceLog(ctx context.Context, entry *model.DeviceLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append device log: %w", err)
	}
	return nil
}

// ListDevices returns the machines of a station, or all machines when stationID is empty.
func (s *gormStore) ListDevices(ctx context.Context, stationID string) ([]model.Device, error) {
	q := s.db.WithContext(ctx)
	if stationID != "" {
		q = q.Where("station_id = ?", stationID)
	}

	var devices []model.Device
	if err := q.Order("device_no ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}
