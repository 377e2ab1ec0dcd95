package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitleak/lmstfy/client"
	"github.com/redis/go-redis/v9"

	"wash-sync-backend/internal/logger"
)

// LmstfyOptions configures an lmstfy backed queue.
type LmstfyOptions struct {
	Prefix  string
	Name    string
	Delay   time.Duration
	TTR     time.Duration
	Timeout time.Duration
}

// pendingTTL bounds how long a lost claim can block a key from being enqueued again.
const pendingTTL = 24 * time.Hour

type lmstfyQueue struct {
	cli   *client.LmstfyClient
	redis *redis.Client
	log   logger.Logger
	opts  LmstfyOptions
}

// NewLmstfyQueue publishes jobs to lmstfy. lmstfy has no key uniqueness, so a
// Redis marker per pending key does the collapsing.
func NewLmstfyQueue(cli *client.LmstfyClient, rdb *redis.Client, log logger.Logger, opts LmstfyOptions) Queue {
	return &lmstfyQueue{cli: cli, redis: rdb, log: log, opts: opts}
}

func (q *lmstfyQueue) Name() string {
	return q.opts.Name
}

func (q *lmstfyQueue) marker(key string) string {
	return fmt.Sprintf("%s:lmstfy:%s:%s", q.opts.Prefix, q.opts.Name, key)
}

func (q *lmstfyQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", job.Key, err)
	}

	fresh, err := q.redis.SetNX(ctx, q.marker(job.Key), 1, pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s pending on %s: %w", job.Key, q.opts.Name, err)
	}
	if !fresh {
		return false, nil
	}

	// One try only: failed jobs are left to reconciliation, not redelivered.
	if _, err := q.cli.Publish(q.opts.Name, payload, 0, 1, uint32(q.opts.Delay/time.Second)); err != nil {
		q.redis.Del(ctx, q.marker(job.Key))
		return false, fmt.Errorf("lmstfy publish failed: %w", err)
	}
	return true, nil
}

func (q *lmstfyQueue) Claim(ctx context.Context) (*Job, error) {
	lj, err := q.cli.Consume(q.opts.Name, uint32(q.opts.TTR/time.Second), uint32(q.opts.Timeout/time.Second))
	if err != nil {
		return nil, fmt.Errorf("lmstfy consume failed: %w", err)
	}
	if lj == nil {
		return nil, ErrEmpty
	}

	if err := q.cli.Ack(q.opts.Name, lj.ID); err != nil {
		return nil, fmt.Errorf("lmstfy ack failed: %w", err)
	}

	var job Job
	if err := json.Unmarshal(lj.Data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode lmstfy job %s: %w", lj.ID, err)
	}
	// The job is already acked; a stale marker only delays the next enqueue until pendingTTL.
	if err := q.redis.Del(ctx, q.marker(job.Key)).Err(); err != nil {
		q.log.Warnf(ctx, "failed to clear pending marker of %s on %s: %v", job.Key, q.opts.Name, err)
	}
	return &job, nil
}
