package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var enqueueScript = redis.NewScript(`
if redis.call('ZADD', KEYS[1], 'NX', ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

var claimScript = redis.NewScript(`
local keys = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #keys == 0 then
  return false
end
redis.call('ZREM', KEYS[1], keys[1])
local payload = redis.call('HGET', KEYS[2], keys[1])
redis.call('HDEL', KEYS[2], keys[1])
return payload
`)

type redisQueue struct {
	client   *redis.Client
	name     string
	pending  string
	payloads string
	delay    time.Duration
	now      func() time.Time
}

// NewRedisQueue keeps due times in a sorted set and payloads in a hash, both keyed by job key.
func NewRedisQueue(client *redis.Client, prefix, name string, delay time.Duration) Queue {
	return &redisQueue{
		client:   client,
		name:     name,
		pending:  fmt.Sprintf("%s:queue:%s:pending", prefix, name),
		payloads: fmt.Sprintf("%s:queue:%s:jobs", prefix, name),
		delay:    delay,
		now:      time.Now,
	}
}

func (q *redisQueue) Name() string {
	return q.name
}

func (q *redisQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job %s: %w", job.Key, err)
	}
	due := q.now().Add(q.delay).UnixMilli()

	added, err := enqueueScript.Run(ctx, q.client,
		[]string{q.pending, q.payloads},
		strconv.FormatInt(due, 10), job.Key, payload,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s on %s: %w", job.Key, q.name, err)
	}
	return added == 1, nil
}

func (q *redisQueue) Claim(ctx context.Context) (*Job, error) {
	payload, err := claimScript.Run(ctx, q.client,
		[]string{q.pending, q.payloads},
		strconv.FormatInt(q.now().UnixMilli(), 10),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim from %s: %w", q.name, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job on %s: %w", q.name, err)
	}
	return &job, nil
}

func (q *redisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.pending).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.name, err)
	}
	return n, nil
}
