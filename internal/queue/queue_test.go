package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/testutil"
)

func syncJob(id string) Job {
	return Job{Key: "Sync_" + id, Type: model.SyncTypeOrder, Action: model.SyncActionSync, ObjectID: id}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// exerciseQueue checks the behaviour every driver must share.
func exerciseQueue(t *testing.T, q Queue) {
	ctx := context.Background()

	_, err := q.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	added, err := q.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = q.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.False(t, added, "a second request for the same key collapses")

	added, err = q.Enqueue(ctx, syncJob("Y"))
	require.NoError(t, err)
	assert.True(t, added)

	if sizer, ok := q.(Sizer); ok {
		n, err := sizer.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}

	job, err := q.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sync_X", job.Key)
	assert.Equal(t, "X", job.ObjectID)
	assert.Equal(t, model.SyncTypeOrder, job.Type)
	assert.Equal(t, model.SyncActionSync, job.Action)

	// Once claimed the key may be enqueued again.
	added, err = q.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.True(t, added)

	job, err = q.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sync_Y", job.Key)

	job, err = q.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sync_X", job.Key)

	_, err = q.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDBQueue(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	q := NewDBQueue(gormDB, "sync_order", 0).(*dbQueue)

	// Keep the enqueue order visible to the claim order.
	base := time.Now().UTC()
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	exerciseQueue(t, q)
}

func TestDBQueue_QueuesAreIndependent(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	orders := NewDBQueue(gormDB, "sync_order", 0)
	users := NewDBQueue(gormDB, "sync_user", 0)
	ctx := context.Background()

	added, err := orders.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.True(t, added)
	added, err = users.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.True(t, added)

	_, err = users.Claim(ctx)
	require.NoError(t, err)
	_, err = users.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	job, err := orders.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sync_X", job.Key)
}

func TestDBQueue_DelayedJobIsNotDue(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	q := NewDBQueue(gormDB, "sync_order", time.Hour)
	ctx := context.Background()

	added, err := q.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.True(t, added)

	_, err = q.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	added, err = q.Enqueue(ctx, syncJob("X"))
	require.NoError(t, err)
	assert.False(t, added, "a delayed job still collapses duplicates")
}

func TestRedisQueue(t *testing.T) {
	_, rdb := newRedis(t)
	q := NewRedisQueue(rdb, "test", "sync_order", 0).(*redisQueue)

	base := time.Now()
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	exerciseQueue(t, q)
}

func TestRedisQueue_DelayedJobIsNotDue(t *testing.T) {
	mr, rdb := newRedis(t)
	q := NewRedisQueue(rdb, "test", "sync_user", time.Minute)
	ctx := context.Background()

	added, err := q.Enqueue(ctx, syncJob("U"))
	require.NoError(t, err)
	assert.True(t, added)

	_, err = q.Claim(ctx)
	assert.ErrorIs(t, err, ErrEmpty)

	members, err := mr.ZMembers("test:queue:sync_user:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sync_U"}, members)
}

func TestNew(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	_, rdb := newRedis(t)

	testCases := []struct {
		driver    string
		backends  Backends
		expectErr bool
	}{
		{driver: "db", backends: Backends{DB: gormDB}},
		{driver: "", backends: Backends{DB: gormDB}},
		{driver: "db", backends: Backends{}, expectErr: true},
		{driver: "redis", backends: Backends{Redis: rdb}},
		{driver: "redis", backends: Backends{DB: gormDB}, expectErr: true},
		{driver: "lmstfy", backends: Backends{Redis: rdb}, expectErr: true},
		{driver: "kafka", backends: Backends{DB: gormDB}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.driver, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Queue.Driver = tc.driver
			cfg.Queue.Prefix = "test"

			q, err := New(cfg, "sync_order", tc.backends)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sync_order", q.Name())
		})
	}
}
