package statemachine

import (
	"context"

	"wash-sync-backend/internal/model"
)

// SignalKind names a post-commit domain signal.
type SignalKind string

const (
	SignalDeviceChanged   SignalKind = "device.changed"
	SignalOrderCompleted  SignalKind = "order.completed"
	SignalOrderSync       SignalKind = "order.sync"
	SignalRefundRequested SignalKind = "order.refund"
)

// Signal is emitted after a transition has been committed.
type Signal struct {
	Kind        SignalKind
	OrderID     string
	StationID   string
	DeviceID    string
	DeviceNo    string
	OrderStatus model.OrderStatus
}

// PostCommitHook receives every signal of a committed transition, in emission order.
// Errors are logged and never undo the committed write.
type PostCommitHook interface {
	OnCommit(ctx context.Context, sig Signal) error
}

// signalsFor lists the signals of a transition in the order they must be emitted.
// device is nil when the machine is not registered; the item then names it.
func signalsFor(ws WashStatus, order *model.Order, item *model.OrderItem, device *model.Device, to model.OrderStatus) []Signal {
	base := Signal{
		OrderID:     order.ID,
		StationID:   order.StationID(),
		DeviceID:    stringData(item, "deviceId"),
		DeviceNo:    item.DeviceNo(),
		OrderStatus: to,
	}
	if device != nil {
		base.DeviceID = device.ID
		base.DeviceNo = device.DeviceNo
		if base.StationID == "" {
			base.StationID = device.StationID
		}
	}

	kinds := []SignalKind{SignalDeviceChanged, SignalOrderCompleted, SignalOrderSync}
	if ws.IsFailure() {
		kinds = append(kinds, SignalRefundRequested)
	}

	signals := make([]Signal, 0, len(kinds))
	for _, k := range kinds {
		s := base
		s.Kind = k
		signals = append(signals, s)
	}
	return signals
}

func stringData(item *model.OrderItem, key string) string {
	v, _ := item.Data[key].(string)
	return v
}
