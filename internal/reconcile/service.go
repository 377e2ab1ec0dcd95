// Package reconcile re-drives every record the CRM has not confirmed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/store"
	"wash-sync-backend/internal/syncbus"
)

// Enqueuer accepts sync requests; *syncbus.Bus implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, req syncbus.Request) (bool, error)
}

// Report counts what one sweep re-enqueued. Collapsed requests are counted too.
type Report struct {
	RetriedLogs int
	Users       int
	Orders      int
	Errors      []error
}

// Service scans for unsynced records in pages, oldest first, and re-enqueues them.
// It only reads; the idempotent job keys make overlapping sweeps harmless.
type Service struct {
	store store.Store
	bus   Enqueuer
	cfg   config.ReconcileConfig
	log   logger.Logger
}

// New creates a reconciliation Service.
func New(s store.Store, bus Enqueuer, cfg config.ReconcileConfig, log logger.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	return &Service{store: s, bus: bus, cfg: cfg, log: log}
}

// RetryFailed re-enqueues every SyncLog row with synced=false, limited to types when given.
func (s *Service) RetryFailed(ctx context.Context, types ...model.SyncType) (int, error) {
	var afterID uint
	total := 0
	for {
		logs, err := s.store.UnsyncedLogs(ctx, afterID, s.cfg.BatchSize, types)
		if err != nil {
			return total, err
		}
		for _, l := range logs {
			_, err := s.bus.Enqueue(ctx, syncbus.Request{Type: l.Type, ID: l.ObjectID, Action: l.Action})
			if errors.Is(err, syncbus.ErrNoRoute) {
				s.log.Warnf(ctx, "no queue for failed %s sync of %s; skipping", l.Type, l.ObjectID)
				continue
			}
			if err != nil {
				return total, fmt.Errorf("failed to re-enqueue %s %s: %w", l.Type, l.ObjectID, err)
			}
			total++
		}
		if len(logs) < s.cfg.BatchSize {
			break
		}
		afterID = logs[len(logs)-1].ID
	}
	metrics.ReconcileEnqueuedTotal.WithLabelValues("retry_failed").Add(float64(total))
	return total, nil
}

// SyncUnsyncedUsers enqueues every client account without a CRM id.
func (s *Service) SyncUnsyncedUsers(ctx context.Context) (int, error) {
	var after store.Cursor
	total := 0
	for {
		users, err := s.store.UnsyncedUsers(ctx, after, s.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		for _, u := range users {
			if _, err := s.bus.Enqueue(ctx, syncbus.Request{Type: model.SyncTypeUser, ID: u.ID, Action: model.SyncActionSync}); err != nil {
				return total, fmt.Errorf("failed to enqueue user %s: %w", u.ID, err)
			}
			total++
		}
		if len(users) < s.cfg.BatchSize {
			break
		}
		last := users[len(users)-1]
		after = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	metrics.ReconcileEnqueuedTotal.WithLabelValues("unsynced_users").Add(float64(total))
	return total, nil
}

// SyncUnsyncedOrders enqueues every eligible order without a CRM id.
func (s *Service) SyncUnsyncedOrders(ctx context.Context) (int, error) {
	var after store.Cursor
	total := 0
	for {
		orders, err := s.store.UnsyncedOrders(ctx, after, s.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		for _, o := range orders {
			if _, err := s.bus.Enqueue(ctx, syncbus.Request{Type: model.SyncTypeOrder, ID: o.ID, Action: model.SyncActionSync}); err != nil {
				return total, fmt.Errorf("failed to enqueue order %s: %w", o.ID, err)
			}
			total++
		}
		if len(orders) < s.cfg.BatchSize {
			break
		}
		last := orders[len(orders)-1]
		after = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	metrics.ReconcileEnqueuedTotal.WithLabelValues("unsynced_orders").Add(float64(total))
	return total, nil
}

// Resync forces a sync of the given records, whatever their current state.
func (s *Service) Resync(ctx context.Context, t model.SyncType, action model.SyncAction, ids ...string) (int, error) {
	if action == "" {
		action = model.SyncActionSync
	}
	total := 0
	for _, id := range ids {
		if _, err := s.bus.Enqueue(ctx, syncbus.Request{Type: t, ID: id, Action: action}); err != nil {
			return total, fmt.Errorf("failed to resync %s %s: %w", t, id, err)
		}
		total++
	}
	metrics.ReconcileEnqueuedTotal.WithLabelValues("resync").Add(float64(total))
	return total, nil
}

// RunAll runs every sweep task. A failing task does not stop the others.
func (s *Service) RunAll(ctx context.Context) Report {
	var report Report
	tasks := []struct {
		name  string
		run   func(context.Context) (int, error)
		count *int
	}{
		{"retry failed syncs", func(ctx context.Context) (int, error) { return s.RetryFailed(ctx) }, &report.RetriedLogs},
		{"sync unsynced users", s.SyncUnsyncedUsers, &report.Users},
		{"sync unsynced orders", s.SyncUnsyncedOrders, &report.Orders},
	}

	for _, task := range tasks {
		s.log.Infof(ctx, "[RECONCILE] %s: start", task.name)
		n, err := task.run(ctx)
		*task.count = n
		if err != nil {
			s.log.Errorf(ctx, "[RECONCILE] %s: failed after %d: %v", task.name, n, err)
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", task.name, err))
			continue
		}
		s.log.Infof(ctx, "[RECONCILE] %s: end, %d enqueued", task.name, n)
	}
	return report
}

// Run sweeps once immediately and then on every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Infof(ctx, "reconciliation is disabled; not starting")
		return
	}
	s.log.Infof(ctx, "starting reconciliation every %s", s.cfg.Interval)

	s.RunAll(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infof(context.Background(), "reconciliation shutting down")
			return
		case <-timer.C:
			s.RunAll(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}
