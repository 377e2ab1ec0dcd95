package syncworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/queue"
	"wash-sync-backend/internal/testutil"
)

type recordingProcessor struct {
	mu      sync.Mutex
	jobs    []queue.Job
	err     error
	block   chan struct{}
	started chan struct{}
	ctxErrs []error
}

func (p *recordingProcessor) Process(ctx context.Context, job queue.Job) error {
	if p.started != nil {
		close(p.started)
	}
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func fastOptions() Options {
	return Options{RatePerSec: 1000, PollInterval: 5 * time.Millisecond, JobTimeout: time.Second}
}

func TestWorker_RunOnce(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	q := queue.NewDBQueue(gormDB, "sync_user", 0)
	proc := &recordingProcessor{err: errors.New("crm down")}
	w := NewWorker(q, proc, fastOptions(), logger.NewNop())
	ctx := context.Background()

	processed, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = q.Enqueue(ctx, queue.Job{Key: "Sync_U", Type: model.SyncTypeUser, Action: model.SyncActionSync, ObjectID: "U"})
	require.NoError(t, err)

	processed, err = w.RunOnce(ctx)
	require.NoError(t, err, "processor errors are not claim errors")
	assert.True(t, processed)
	require.Len(t, proc.jobs, 1)
	assert.Equal(t, "U", proc.jobs[0].ObjectID)

	// The failed job is gone; recovery belongs to reconciliation.
	processed, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestManager_DrainsQueuesAndShutsDown(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	users := queue.NewDBQueue(gormDB, "sync_user", 0)
	orders := queue.NewDBQueue(gormDB, "sync_order", 0)
	userProc, orderProc := &recordingProcessor{}, &recordingProcessor{}
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := users.Enqueue(ctx, queue.Job{Key: "Sync_" + id, Type: model.SyncTypeUser, Action: model.SyncActionSync, ObjectID: id})
		require.NoError(t, err)
	}
	_, err := orders.Enqueue(ctx, queue.Job{Key: "Sync_o", Type: model.SyncTypeOrder, Action: model.SyncActionSync, ObjectID: "o"})
	require.NoError(t, err)

	m := NewManager(logger.NewNop(),
		NewWorker(users, userProc, fastOptions(), logger.NewNop()),
		NewWorker(orders, orderProc, fastOptions(), logger.NewNop()),
	)

	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return userProc.count() == 2 && orderProc.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	m.Shutdown()
	m.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestManager_FinishesInFlightJob(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	q := queue.NewDBQueue(gormDB, "sync_campaign", 0)
	proc := &recordingProcessor{block: make(chan struct{}), started: make(chan struct{})}

	_, err := q.Enqueue(context.Background(), queue.Job{Key: "Sync_c", Type: model.SyncTypeCampaign, Action: model.SyncActionSync, ObjectID: "c"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(logger.NewNop(), NewWorker(q, proc, fastOptions(), logger.NewNop()))
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	<-proc.started
	cancel()

	select {
	case <-done:
		t.Fatal("manager returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(proc.block)
	<-done

	require.Equal(t, 1, proc.count())
	assert.NoError(t, proc.ctxErrs[0], "the job context outlives the manager context")
}
