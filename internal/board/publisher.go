// Package board fans committed device and order changes out to live station boards over Redis pub/sub.
package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/statemachine"
)

// ChannelOrdersCompleted receives one message per wash order that reached a terminal status.
const ChannelOrdersCompleted = "orders:completed"

// DeviceMessage is published when a machine changes occupancy.
type DeviceMessage struct {
	StationID string             `json:"stationId"`
	DeviceNo  string             `json:"deviceNo"`
	Status    model.DeviceStatus `json:"status"`
}

// OrderMessage is published when a wash order ends, successfully or not.
type OrderMessage struct {
	OrderID   string            `json:"orderId"`
	StationID string            `json:"stationId"`
	Status    model.OrderStatus `json:"status"`
}

// StationChannel is the pub/sub channel of a station board.
func StationChannel(stationID string) string {
	return fmt.Sprintf("station:%s:devices", stationID)
}

// Publisher publishes board updates. A Publisher without a client drops everything.
type Publisher struct {
	rdb *redis.Client
	log logger.Logger
}

// NewPublisher creates a Publisher; rdb may be nil.
func NewPublisher(rdb *redis.Client, log logger.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

// OnCommit publishes device.changed and order.completed signals.
func (p *Publisher) OnCommit(ctx context.Context, sig statemachine.Signal) error {
	if p.rdb == nil {
		return nil
	}

	switch sig.Kind {
	case statemachine.SignalDeviceChanged:
		// Every terminal event releases the machine.
		return p.publish(ctx, StationChannel(sig.StationID), DeviceMessage{
			StationID: sig.StationID,
			DeviceNo:  sig.DeviceNo,
			Status:    model.DeviceStatusAvailable,
		})
	case statemachine.SignalOrderCompleted:
		return p.publish(ctx, ChannelOrdersCompleted, OrderMessage{
			OrderID:   sig.OrderID,
			StationID: sig.StationID,
			Status:    sig.OrderStatus,
		})
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, channel string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal board message: %w", err)
	}
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	p.log.Debugf(ctx, "published board update on %s", channel)
	return nil
}
