package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wash-sync-backend/internal/model"
)

// Any matches any driver value.
type Any struct{}

func (a Any) Match(v driver.Value) bool { return true }

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func completeTransition() Transition {
	return Transition{
		OrderID:   "order-1",
		ItemID:    "item-1",
		DeviceNo:  "DEV-01",
		From:      model.ActiveOrderStatuses,
		To:        model.OrderStatusCompleted,
		OrderData: map[string]interface{}{"stationId": "station-1", "endTime": "2024-01-01T00:00:00Z"},
		ItemData:  map[string]interface{}{"deviceNo": "DEV-01", "washStatus": "COMPLETE"},
	}
}

func TestGormStore_ApplyTransition(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      error
		expectDevice     bool
	}{
		{
			name: "all three rows updated and committed",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "order_items" SET "data"=$1`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET "status"=$1`)).
					WithArgs("AVAILABLE", Any{}, "DEV-01").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`SELECT \* FROM "devices" WHERE device_no = \$1`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "device_no", "station_id", "status"}).
						AddRow("device-1", "DEV-01", "station-1", "AVAILABLE"))
				mock.ExpectCommit()
			},
			expectDevice: true,
		},
		{
			name: "order already terminal rolls back without touching item or device",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: ErrStaleTransition,
		},
		{
			name: "device update failure rolls back order and item",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "order_items" SET "data"=$1`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET "status"=$1`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectedErr: errors.New("connection reset"),
		},
		{
			name: "unregistered device still commits the order",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "order_items" SET "data"=$1`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET "status"=$1`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT \* FROM "devices" WHERE device_no = \$1`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "device_no", "station_id", "status"}))
				mock.ExpectCommit()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := NewGormStore(gormDB)
			tc.mockExpectations(mock)

			device, err := s.ApplyTransition(context.Background(), completeTransition())

			switch {
			case tc.expectedErr == nil:
				require.NoError(t, err)
			case errors.Is(tc.expectedErr, ErrStaleTransition), errors.Is(tc.expectedErr, ErrNotFound):
				assert.ErrorIs(t, err, tc.expectedErr)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErr.Error())
			}
			if tc.expectDevice {
				require.NotNil(t, device)
				assert.Equal(t, "device-1", device.ID)
			} else {
				assert.Nil(t, device)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_LogSyncReplacesRow(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "sync_logs" WHERE object_id = $1 AND type = $2`)).
		WithArgs("order-1", "ORDER").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sync_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	entry := &model.SyncLog{
		ID:       3,
		ObjectID: "order-1",
		Type:     model.SyncTypeOrder,
		Action:   model.SyncActionSync,
		Synced:   true,
		SyncedAt: time.Now(),
	}
	require.NoError(t, s.LogSync(context.Background(), entry))
	assert.Equal(t, uint(7), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LogSyncInsertFailureRollsBack(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "sync_logs"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sync_logs"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.LogSync(context.Background(), &model.SyncLog{ObjectID: "u1", Type: model.SyncTypeUser, Action: model.SyncActionSync})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
