// Package webhook ingests signed and encrypted wash events from the machines.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"wash-sync-backend/internal/codec"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/statemachine"
	"wash-sync-backend/internal/store"
)

// Error messages of rejected deliveries.
const (
	ErrMsgMissingBody = "MISSING_BODY"
	ErrMsgInvalidBody = "INVALID_BODY"
)

var (
	resultOK         = strconv.Itoa(http.StatusOK)
	resultBadRequest = strconv.Itoa(http.StatusBadRequest)
)

// Payload is the decrypted body of a device event.
type Payload struct {
	YglOrderNo string                  `json:"yglOrderNo"`
	OrderNo    string                  `json:"orderNo"`
	DeviceNo   string                  `json:"deviceNo"`
	WashStatus statemachine.WashStatus `json:"washStatus"`
	AlarmList  []statemachine.Alarm    `json:"alarmList"`
	TimeStamp  interface{}             `json:"timeStamp,omitempty"`
}

// Response is returned for every delivery. Domain failure is only visible in Success.
type Response struct {
	TraceID    string          `json:"traceId"`
	Success    bool            `json:"success"`
	ResultCode string          `json:"resultCode"`
	ErrorMsg   string          `json:"errorMsg,omitempty"`
	ResultInfo *codec.Envelope `json:"resultInfo,omitempty"`
}

// EventHandler applies a validated event; *statemachine.Machine implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev statemachine.Event) (statemachine.Result, error)
}

// Handler unwraps deliveries, keeps the audit trail and dispatches events.
type Handler struct {
	codec   *codec.Codec
	store   store.Store
	events  EventHandler
	prefix  string
	log     logger.Logger
	traceID func() string
}

// NewHandler creates a Handler. prefix is stripped from inbound order numbers.
func NewHandler(c *codec.Codec, s store.Store, events EventHandler, prefix string, log logger.Logger) *Handler {
	return &Handler{
		codec:   c,
		store:   s,
		events:  events,
		prefix:  prefix,
		log:     log,
		traceID: uuid.NewString,
	}
}

// Handle processes one raw delivery and always returns a response envelope.
func (h *Handler) Handle(ctx context.Context, raw []byte) Response {
	start := time.Now()
	traceID := h.traceID()
	ctx = logger.WithTraceID(ctx, traceID)

	res, status := h.handle(ctx, traceID, raw)

	res.ResultInfo = h.seal(ctx, res)
	metrics.WebhookEventsTotal.WithLabelValues(string(status), res.ResultCode).Inc()
	metrics.WebhookDuration.Observe(time.Since(start).Seconds())
	return res
}

func (h *Handler) handle(ctx context.Context, traceID string, raw []byte) (Response, statemachine.WashStatus) {
	h.appendLog(ctx, &model.DeviceLog{TraceID: traceID, Type: model.DeviceLogTypeRaw, Body: string(raw)})

	if len(bytes.TrimSpace(raw)) == 0 {
		return failure(traceID, ErrMsgMissingBody), ""
	}

	var env codec.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.log.Warnf(ctx, "webhook body is not an envelope: %v", err)
		return failure(traceID, ErrMsgInvalidBody), ""
	}

	var payload Payload
	if err := h.codec.VerifyAndDecrypt(&env, &payload); err != nil {
		var perr *codec.ProtocolError
		if errors.As(err, &perr) {
			h.log.Warnf(ctx, "rejected webhook (%s): %v", perr.Kind, err)
		}
		return failure(traceID, err.Error()), ""
	}

	payload.OrderNo = codec.StripOrderNoPrefix(h.prefix, payload.OrderNo)
	h.appendLog(ctx, &model.DeviceLog{
		TraceID:  traceID,
		Type:     model.DeviceLogTypeWebhook,
		DeviceNo: payload.DeviceNo,
		OrderNo:  payload.OrderNo,
		Data:     payloadData(payload),
		Body:     string(raw),
	})

	incrementID, ok := codec.ParseIncrementID(payload.OrderNo)
	if !ok {
		h.log.Infof(ctx, "ignoring %s for unknown order number %q", payload.WashStatus, payload.OrderNo)
		return success(traceID), payload.WashStatus
	}

	_, err := h.events.Handle(ctx, statemachine.Event{
		IncrementID:     incrementID,
		DeviceNo:        payload.DeviceNo,
		Status:          payload.WashStatus,
		Alarms:          payload.AlarmList,
		ExternalOrderNo: payload.YglOrderNo,
	})
	if err != nil {
		h.log.Errorf(ctx, "failed to apply %s to order %d: %v", payload.WashStatus, incrementID, err)
		return failure(traceID, err.Error()), payload.WashStatus
	}
	return success(traceID), payload.WashStatus
}

// seal encrypts and signs a copy of the response for the device.
func (h *Handler) seal(ctx context.Context, res Response) *codec.Envelope {
	env, err := h.codec.EncryptAndSign(Response{
		TraceID:    res.TraceID,
		Success:    res.Success,
		ResultCode: res.ResultCode,
		ErrorMsg:   res.ErrorMsg,
	})
	if err != nil {
		h.log.Errorf(ctx, "failed to seal webhook response: %v", err)
		return nil
	}
	return env
}

// appendLog never fails the delivery; the audit row is best effort.
func (h *Handler) appendLog(ctx context.Context, entry *model.DeviceLog) {
	if err := h.store.AppendDeviceLog(ctx, entry); err != nil {
		h.log.Errorf(ctx, "failed to write %s device log: %v", entry.Type, err)
	}
}

func payloadData(p Payload) datatypes.JSONMap {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m datatypes.JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func success(traceID string) Response {
	return Response{TraceID: traceID, Success: true, ResultCode: resultOK}
}

func failure(traceID, msg string) Response {
	return Response{TraceID: traceID, Success: false, ResultCode: resultBadRequest, ErrorMsg: msg}
}
