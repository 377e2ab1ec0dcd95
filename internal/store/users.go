package store

import (
	"context"
	"fmt"

	"wash-sync-backend/internal/model"
)

func (s *gormStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err, "user %s", id)
	}
	return &user, nil
}

func (s *gormStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, notFound(err, "campaign %s", id)
	}
	return &campaign, nil
}

// UnsyncedUsers pages through client accounts that have no CRM id yet.
func (s *gormStore) UnsyncedUsers(ctx context.Context, after Cursor, limit int) ([]model.User, error) {
	q := s.db.WithContext(ctx).Where("type = ? AND external_id IS NULL", model.UserTypeClient)
	q = afterCursor(q, after)

	var users []model.User
	if err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to scan unsynced users: %w", err)
	}
	return users, nil
}
