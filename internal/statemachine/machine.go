// Package statemachine applies device wash events to orders, items and devices.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/store"
)

// Result describes what Handle did with an event.
type Result struct {
	Applied bool
	Status  model.OrderStatus
	Reason  string
	Signals []Signal
}

// Machine is the order/device state machine.
type Machine struct {
	store store.Store
	hooks []PostCommitHook
	log   logger.Logger
	now   func() time.Time
}

// New creates a Machine; hooks run in the given order after every commit.
func New(s store.Store, log logger.Logger, hooks ...PostCommitHook) *Machine {
	return &Machine{
		store: s,
		hooks: hooks,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies one event. A missing or no longer active order is a no-op, not an error.
// An error means the transaction was rolled back.
func (m *Machine) Handle(ctx context.Context, ev Event) (Result, error) {
	if ev.Status == WashStart {
		metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "skipped").Inc()
		return Result{Reason: "start events do not change state"}, nil
	}

	to, ok := TargetStatus(ev.Status)
	if !ok {
		m.log.Warnf(ctx, "ignoring unsupported wash status %q for order %d", ev.Status, ev.IncrementID)
		metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "skipped").Inc()
		return Result{Reason: "unsupported wash status"}, nil
	}

	order, err := m.store.FindActiveOrder(ctx, ev.IncrementID)
	if err != nil {
		return m.skipOrFail(ctx, ev, err, fmt.Sprintf("no active order %d", ev.IncrementID))
	}
	item, err := m.store.FindOrderItem(ctx, order.ID, ev.DeviceNo)
	if err != nil {
		return m.skipOrFail(ctx, ev, err, fmt.Sprintf("order %d has no item on device %s", ev.IncrementID, ev.DeviceNo))
	}

	now := m.now().Format(time.RFC3339)
	orderData := copyMap(order.Data)
	orderData["endTime"] = now
	if ev.ExternalOrderNo != "" {
		orderData["yglOrderId"] = ev.ExternalOrderNo
	}
	itemData := copyMap(item.Data)
	itemData["washStatus"] = string(ev.Status)
	itemData["endTime"] = now
	if ev.Status.IsFailure() {
		alarms := ev.Alarms
		if alarms == nil {
			alarms = []Alarm{}
		}
		itemData["alarmList"] = alarms
	}

	device, err := m.store.ApplyTransition(ctx, store.Transition{
		OrderID:   order.ID,
		ItemID:    item.ID,
		DeviceNo:  ev.DeviceNo,
		From:      model.ActiveOrderStatuses,
		To:        to,
		OrderData: orderData,
		ItemData:  itemData,
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return m.skipOrFail(ctx, ev, err, fmt.Sprintf("order %d left its active status concurrently", ev.IncrementID))
		}
		metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "failed").Inc()
		return Result{}, fmt.Errorf("failed to apply %s to order %d: %w", ev.Status, ev.IncrementID, err)
	}

	if device == nil {
		m.log.Warnf(ctx, "device %s is not registered; order %d moved to %s without releasing it", ev.DeviceNo, ev.IncrementID, to)
	}
	m.log.Infof(ctx, "order %d moved to %s by %s on device %s", ev.IncrementID, to, ev.Status, ev.DeviceNo)
	metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "applied").Inc()

	order.Status = to
	order.Data = orderData
	item.Data = itemData
	signals := signalsFor(ev.Status, order, item, device, to)
	m.emit(ctx, signals)

	return Result{Applied: true, Status: to, Signals: signals}, nil
}

// emit runs every hook for every signal, in order. Failures are logged only.
func (m *Machine) emit(ctx context.Context, signals []Signal) {
	for _, sig := range signals {
		for _, h := range m.hooks {
			if err := h.OnCommit(ctx, sig); err != nil {
				metrics.HookFailuresTotal.WithLabelValues(string(sig.Kind)).Inc()
				m.log.Errorf(ctx, "post-commit hook failed for %s of order %s: %v", sig.Kind, sig.OrderID, err)
			}
		}
	}
}

func (m *Machine) skipOrFail(ctx context.Context, ev Event, err error, reason string) (Result, error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrStaleTransition) {
		m.log.Infof(ctx, "skipping %s: %s", ev.Status, reason)
		metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "skipped").Inc()
		return Result{Reason: reason}, nil
	}
	metrics.TransitionsTotal.WithLabelValues(string(ev.Status), "failed").Inc()
	return Result{}, fmt.Errorf("failed to resolve order %d: %w", ev.IncrementID, err)
}

func copyMap(in datatypes.JSONMap) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	return out
}
