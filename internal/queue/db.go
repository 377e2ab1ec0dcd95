package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wash-sync-backend/internal/model"
)

type dbQueue struct {
	db    *gorm.DB
	name  string
	delay time.Duration
	now   func() time.Time
}

// NewDBQueue stores jobs in the sync_jobs table. The unique (queue_name, job_key)
// index does the collapsing.
func NewDBQueue(db *gorm.DB, name string, delay time.Duration) Queue {
	return &dbQueue{
		db:    db,
		name:  name,
		delay: delay,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (q *dbQueue) Name() string {
	return q.name
}

func (q *dbQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	row := &model.SyncJob{
		QueueName:   q.name,
		JobKey:      job.Key,
		Type:        job.Type,
		Action:      job.Action,
		ObjectID:    job.ObjectID,
		AvailableAt: q.now().Add(q.delay),
	}
	res := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "queue_name"}, {Name: "job_key"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to enqueue %s on %s: %w", job.Key, q.name, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (q *dbQueue) Claim(ctx context.Context) (*Job, error) {
	var row model.SyncJob
	err := q.db.WithContext(ctx).
		Where("queue_name = ? AND available_at <= ?", q.name, q.now()).
		Order("available_at ASC").Order("id ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim from %s: %w", q.name, err)
	}

	// Another consumer may have taken it between the read and the delete.
	res := q.db.WithContext(ctx).Where("id = ?", row.ID).Delete(&model.SyncJob{})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to remove job %s from %s: %w", row.JobKey, q.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrEmpty
	}

	return &Job{Key: row.JobKey, Type: row.Type, Action: row.Action, ObjectID: row.ObjectID}, nil
}

func (q *dbQueue) Len(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("queue_name = ?", q.name).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.name, err)
	}
	return count, nil
}
