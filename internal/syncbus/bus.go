// Package syncbus routes "needs CRM sync" requests onto the queue owned by each record type.
package syncbus

import (
	"context"
	"errors"
	"fmt"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/queue"
	"wash-sync-backend/internal/statemachine"
)

// Queue names, one per aggregate.
const (
	QueueUser     = "sync_user"
	QueueOrder    = "sync_order"
	QueueCampaign = "sync_campaign"
	QueueRefund   = "sync_refund"
)

// QueueNames lists every queue a Bus routes to.
var QueueNames = []string{QueueUser, QueueOrder, QueueCampaign, QueueRefund}

// ErrNoRoute is returned for record types no queue owns.
var ErrNoRoute = errors.New("no sync queue for record type")

// Request asks for one record to be pushed to, or removed from, the CRM.
type Request struct {
	Type   model.SyncType
	ID     string
	Action model.SyncAction
}

// JobKey is the collapsing key of a request.
func JobKey(action model.SyncAction, id string) string {
	return fmt.Sprintf("%s_%s", action, id)
}

// QueueFor returns the name of the queue that owns t.
func QueueFor(t model.SyncType) (string, error) {
	switch t {
	case model.SyncTypeUser:
		return QueueUser, nil
	case model.SyncTypeOrder, model.SyncTypeOrderItem, model.SyncTypeOrderTransaction:
		return QueueOrder, nil
	case model.SyncTypeCampaign:
		return QueueCampaign, nil
	case model.SyncTypeRefund:
		return QueueRefund, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNoRoute, t)
	}
}

// Bus enqueues sync requests. It is also a post-commit hook of the state machine.
type Bus struct {
	queues map[string]queue.Queue
	log    logger.Logger
}

// New creates a Bus over the given queues, keyed by their names.
func New(log logger.Logger, queues ...queue.Queue) *Bus {
	m := make(map[string]queue.Queue, len(queues))
	for _, q := range queues {
		m[q.Name()] = q
	}
	return &Bus{queues: m, log: log}
}

// Queue returns the queue registered under name.
func (b *Bus) Queue(name string) (queue.Queue, bool) {
	q, ok := b.queues[name]
	return q, ok
}

// Enqueue reports whether a new job was created; false means it collapsed into a pending one.
func (b *Bus) Enqueue(ctx context.Context, req Request) (bool, error) {
	if req.Action == "" {
		req.Action = model.SyncActionSync
	}
	name, err := QueueFor(req.Type)
	if err != nil {
		return false, err
	}
	q, ok := b.queues[name]
	if !ok {
		return false, fmt.Errorf("%w: queue %s is not configured", ErrNoRoute, name)
	}

	key := JobKey(req.Action, req.ID)
	added, err := q.Enqueue(ctx, queue.Job{Key: key, Type: req.Type, Action: req.Action, ObjectID: req.ID})
	if err != nil {
		metrics.JobsEnqueuedTotal.WithLabelValues(name, "error").Inc()
		return false, err
	}

	if added {
		metrics.JobsEnqueuedTotal.WithLabelValues(name, "enqueued").Inc()
		b.log.Debugf(ctx, "enqueued %s on %s", key, name)
	} else {
		metrics.JobsEnqueuedTotal.WithLabelValues(name, "collapsed").Inc()
		b.log.Debugf(ctx, "%s already pending on %s", key, name)
	}
	return added, nil
}

// OnCommit turns order sync and refund signals into queue jobs.
func (b *Bus) OnCommit(ctx context.Context, sig statemachine.Signal) error {
	switch sig.Kind {
	case statemachine.SignalOrderSync:
		_, err := b.Enqueue(ctx, Request{Type: model.SyncTypeOrder, ID: sig.OrderID, Action: model.SyncActionSync})
		return err
	case statemachine.SignalRefundRequested:
		_, err := b.Enqueue(ctx, Request{Type: model.SyncTypeRefund, ID: sig.OrderID, Action: model.SyncActionSync})
		return err
	}
	return nil
}
