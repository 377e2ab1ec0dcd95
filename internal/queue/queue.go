// Package queue holds the named, key-collapsing job queues that feed the sync workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
)

// ErrEmpty is returned by Claim when no job is due.
var ErrEmpty = errors.New("queue is empty")

// Job is one pending sync request. Key identifies it for collapsing.
type Job struct {
	Key      string           `json:"key"`
	Type     model.SyncType   `json:"type"`
	Action   model.SyncAction `json:"action"`
	ObjectID string           `json:"id"`
}

// Queue is a named queue in which jobs sharing a key collapse while pending.
// A claimed job is removed; a failed job is never redelivered.
type Queue interface {
	Name() string
	// Enqueue reports false when a job with the same key is already pending.
	Enqueue(ctx context.Context, job Job) (bool, error)
	// Claim removes and returns the oldest due job, or ErrEmpty.
	Claim(ctx context.Context) (*Job, error)
}

// Sizer is implemented by queues that can count their pending jobs.
type Sizer interface {
	Len(ctx context.Context) (int64, error)
}

// Backends carries the connections the drivers may need.
type Backends struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Lmstfy *client.LmstfyClient
	Log    logger.Logger
}

// New builds the queue called name with the configured driver.
func New(cfg *config.Config, name string, b Backends) (Queue, error) {
	delay := cfg.Queue.Delay
	switch cfg.Queue.Driver {
	case "", "db":
		if b.DB == nil {
			return nil, fmt.Errorf("queue %s: db driver needs a database", name)
		}
		return NewDBQueue(b.DB, name, delay), nil
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("queue %s: redis driver needs a redis client", name)
		}
		return NewRedisQueue(b.Redis, cfg.Queue.Prefix, name, delay), nil
	case "lmstfy":
		if b.Lmstfy == nil || b.Redis == nil {
			return nil, fmt.Errorf("queue %s: lmstfy driver needs an lmstfy and a redis client", name)
		}
		log := b.Log
		if log == nil {
			log = logger.NewNop()
		}
		return NewLmstfyQueue(b.Lmstfy, b.Redis, log, LmstfyOptions{
			Prefix:  cfg.Queue.Prefix,
			Name:    name,
			Delay:   delay,
			TTR:     time.Duration(cfg.Lmstfy.TTRSeconds) * time.Second,
			Timeout: time.Duration(cfg.Lmstfy.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Queue.Driver)
	}
}
