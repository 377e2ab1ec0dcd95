package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/statemachine"
)

const (
	subscriptionsQuery = `SELECT .* FROM "push_subscriptions".*JOIN .*subscription_device_mapping.*WHERE .*sdm\.device_id = \$1`
	deviceQuery        = `SELECT "device_no","name" FROM "devices" WHERE id = \$1 ORDER BY "devices"."id" LIMIT \$[0-9]+`
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func subscriptionRows(sub model.PushSubscription) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
		AddRow(sub.Endpoint, sub.P256DH, sub.Auth, time.Now())
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, logger.NewNop())

	assert.True(t, wp.Dispatch("device-1"))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "device-1", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, logger.NewNop())

	for i := 0; i < cap(wp.jobs); i++ {
		require.True(t, wp.Dispatch(fmt.Sprintf("device-%d", i)))
	}
	assert.False(t, wp.Dispatch("overflow"))
}

func TestWorkerPool_OnCommit(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{}, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, wp.OnCommit(ctx, statemachine.Signal{Kind: statemachine.SignalOrderSync, DeviceID: "device-1"}))
	require.NoError(t, wp.OnCommit(ctx, statemachine.Signal{Kind: statemachine.SignalDeviceChanged, DeviceID: "device-2"}))

	require.Len(t, wp.jobs, 1)
	assert.Equal(t, "device-2", <-wp.jobs)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		sub := model.PushSubscription{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"}

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				assert.Equal(t, "https://example.com/push", s.Endpoint)
				assert.Equal(t, "test_p256dh", s.Keys.P256dh)

				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Washer 7 is available!", msg.Body)
				assert.Equal(t, "DEV-07", msg.DeviceNo)
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("device-7").
			WillReturnRows(subscriptionRows(sub))
		mock.ExpectQuery(deviceQuery).
			WithArgs("device-7", 1).
			WillReturnRows(sqlmock.NewRows([]string{"device_no", "name"}).AddRow("DEV-07", "Washer 7"))

		wp.Dispatch("device-7")
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		sub := model.PushSubscription{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"}

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("device-8").
			WillReturnRows(subscriptionRows(sub))
		mock.ExpectQuery(deviceQuery).
			WithArgs("device-8", 1).
			WillReturnRows(sqlmock.NewRows([]string{"device_no", "name"}).AddRow("DEV-08", ""))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs(sub.Endpoint).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch("device-8")

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("falls back to device id when lookup fails", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		sub := model.PushSubscription{Endpoint: "https://example.com/fallback", P256DH: "p", Auth: "a"}

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "device-9 is available!", msg.Body)
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(subscriptionsQuery).
			WithArgs("device-9").
			WillReturnRows(subscriptionRows(sub))
		mock.ExpectQuery(deviceQuery).
			WithArgs("device-9", 1).
			WillReturnError(fmt.Errorf("device not found"))

		wp.Dispatch("device-9")
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
