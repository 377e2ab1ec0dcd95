package statemachine

import "wash-sync-backend/internal/model"

// WashStatus is the lifecycle event reported by a machine.
type WashStatus string

const (
	WashStart    WashStatus = "START"
	WashComplete WashStatus = "COMPLETE"
	WashStop     WashStatus = "STOP"
	WashAlarm    WashStatus = "ALARM"
	WashRefund   WashStatus = "REFUND"
)

// Alarm is one fault reported together with an ALARM event.
type Alarm struct {
	AlarmType   string `json:"alarmType"`
	AlarmCode   string `json:"alarmCode"`
	AlarmName   string `json:"alarmName"`
	AlarmDesc   string `json:"alarmDesc"`
	AlarmReason string `json:"alarmReason"`
}

// Event is a validated wash event addressed to a local order.
type Event struct {
	IncrementID     int64
	DeviceNo        string
	Status          WashStatus
	Alarms          []Alarm
	ExternalOrderNo string
}

var transitions = map[WashStatus]model.OrderStatus{
	WashComplete: model.OrderStatusCompleted,
	WashAlarm:    model.OrderStatusAbnormalStop,
	WashStop:     model.OrderStatusSelfStop,
	WashRefund:   model.OrderStatusRefunded,
}

// TargetStatus returns the order status a terminal wash event leads to.
func TargetStatus(ws WashStatus) (model.OrderStatus, bool) {
	to, ok := transitions[ws]
	return to, ok
}

// IsFailure reports whether the event ends the wash without completing it.
func (ws WashStatus) IsFailure() bool {
	switch ws {
	case WashStop, WashAlarm, WashRefund:
		return true
	}
	return false
}
