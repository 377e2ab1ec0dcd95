// Package notification pushes "machine available" web-push messages to browsers subscribed to a device.
package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/statemachine"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON payload delivered to the browser.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	DeviceID string `json:"deviceId"`
	DeviceNo string `json:"deviceNo"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     logger.Logger
}

// NewWorkerPool creates a new worker pool. Jobs are device ids.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log logger.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debugf(ctx, "push worker %d started", id)
	for {
		select {
		case deviceID := <-wp.jobs:
			wp.sendNotificationsForDevice(ctx, deviceID)
		case <-ctx.Done():
			wp.log.Debugf(ctx, "push worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a device for notification. It never blocks; a full queue drops the job.
func (wp *WorkerPool) Dispatch(deviceID string) bool {
	select {
	case wp.jobs <- deviceID:
		return true
	default:
		wp.log.Warnf(context.Background(), "push queue is full, dropping notification for device %s", deviceID)
		return false
	}
}

// OnCommit notifies subscribers when a machine is released.
func (wp *WorkerPool) OnCommit(_ context.Context, sig statemachine.Signal) error {
	if sig.Kind == statemachine.SignalDeviceChanged && sig.DeviceID != "" {
		wp.Dispatch(sig.DeviceID)
	}
	return nil
}

func (wp *WorkerPool) sendNotificationsForDevice(ctx context.Context, deviceID string) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_device_mapping sdm ON sdm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sdm.device_id = ?", deviceID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Errorf(ctx, "failed to load subscriptions for device %s: %v", deviceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	msg := Message{Title: "Machine available", DeviceID: deviceID, DeviceNo: deviceID}
	var device model.Device
	if err := wp.db.WithContext(ctx).
		Select("device_no", "name").
		Where("id = ?", deviceID).
		First(&device).Error; err != nil {
		wp.log.Warnf(ctx, "failed to load device %s: %v", deviceID, err)
	} else {
		msg.DeviceNo = device.DeviceNo
	}
	label := msg.DeviceNo
	if device.Name != "" {
		label = device.Name
	}
	msg.Body = label + " is available!"

	payload, err := json.Marshal(msg)
	if err != nil {
		wp.log.Errorf(ctx, "failed to marshal push message: %v", err)
		return
	}

	wp.log.Infof(ctx, "sending %d notifications for device %s", len(subscriptions), deviceID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warnf(ctx, "failed to push to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Infof(ctx, "subscription %s expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Errorf(ctx, "failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
