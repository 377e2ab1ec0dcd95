package syncworker

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"wash-sync-backend/internal/logger"
)

// Manager runs one Worker per queue; different queues proceed in parallel.
type Manager struct {
	workers    []*Worker
	closing    *atomic.Bool
	cancel     context.CancelFunc
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	log        logger.Logger
}

// NewManager creates a Manager over the given workers.
func NewManager(log logger.Logger, workers ...*Worker) *Manager {
	return &Manager{
		workers:    workers,
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		log:        log,
	}
}

// Start launches every worker and blocks until Shutdown completes or ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.closing.Load() {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Run(runCtx)
		}()
		m.log.Infof(ctx, "[Manager] worker started: %s", w.Name())
	}
	m.mu.Unlock()

	m.log.Infof(ctx, "[Manager] %d workers running", len(m.workers))

	select {
	case <-ctx.Done():
		m.Shutdown()
		<-m.shutdownCh
	case <-m.shutdownCh:
	}
}

// Shutdown stops claiming new jobs and waits for in-flight jobs. Every caller
// returns only once the workers have drained.
func (m *Manager) Shutdown() {
	if !m.closing.CAS(false, true) {
		<-m.shutdownCh
		return
	}
	m.log.Infof(context.Background(), "[Manager] began to close")

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	close(m.shutdownCh)
	m.log.Infof(context.Background(), "[Manager] shutdown complete")
}
