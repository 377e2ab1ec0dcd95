package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/store"
	"wash-sync-backend/internal/testutil"
)

func TestFindActiveOrderAndItem(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	order, item, _ := testutil.SeedWash(t, gormDB, 123, model.OrderStatusProcessing, "DEV-01")
	testutil.SeedWash(t, gormDB, 124, model.OrderStatusCompleted, "DEV-02")

	found, err := s.FindActiveOrder(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, "station-1", found.StationID())

	_, err = s.FindActiveOrder(ctx, 124)
	assert.ErrorIs(t, err, store.ErrNotFound)

	foundItem, err := s.FindOrderItem(ctx, order.ID, "DEV-01")
	require.NoError(t, err)
	assert.Equal(t, item.ID, foundItem.ID)
	assert.Equal(t, "DEV-01", foundItem.DeviceNo())

	_, err = s.FindOrderItem(ctx, order.ID, "DEV-99")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyTransition_SQLite(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	order, item, device := testutil.SeedWash(t, gormDB, 5, model.OrderStatusProcessing, "DEV-05")

	tr := store.Transition{
		OrderID:   order.ID,
		ItemID:    item.ID,
		DeviceNo:  "DEV-05",
		From:      model.ActiveOrderStatuses,
		To:        model.OrderStatusSelfStop,
		OrderData: map[string]interface{}{"stationId": "station-1", "endTime": "now"},
		ItemData:  map[string]interface{}{"deviceNo": "DEV-05", "washStatus": "STOP"},
	}
	released, err := s.ApplyTransition(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, device.ID, released.ID)

	var gotOrder model.Order
	require.NoError(t, gormDB.First(&gotOrder, "id = ?", order.ID).Error)
	assert.Equal(t, model.OrderStatusSelfStop, gotOrder.Status)
	assert.Equal(t, "now", gotOrder.Data["endTime"])

	var gotDevice model.Device
	require.NoError(t, gormDB.First(&gotDevice, "id = ?", device.ID).Error)
	assert.Equal(t, model.DeviceStatusAvailable, gotDevice.Status)

	// The same transition again finds no order in an allowed status.
	_, err = s.ApplyTransition(ctx, tr)
	assert.ErrorIs(t, err, store.ErrStaleTransition)
}

func TestApplyTransition_UnregisteredDevice(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	order, item, device := testutil.SeedWash(t, gormDB, 55, model.OrderStatusProcessing, "DEV-55")
	require.NoError(t, gormDB.Delete(&model.Device{}, "id = ?", device.ID).Error)

	released, err := s.ApplyTransition(ctx, store.Transition{
		OrderID:   order.ID,
		ItemID:    item.ID,
		DeviceNo:  "DEV-55",
		From:      model.ActiveOrderStatuses,
		To:        model.OrderStatusCompleted,
		OrderData: map[string]interface{}{"stationId": "station-1"},
		ItemData:  map[string]interface{}{"deviceNo": "DEV-55", "washStatus": "COMPLETE"},
	})
	require.NoError(t, err)
	assert.Nil(t, released)

	var gotOrder model.Order
	require.NoError(t, gormDB.First(&gotOrder, "id = ?", order.ID).Error)
	assert.Equal(t, model.OrderStatusCompleted, gotOrder.Status)

	var gotItem model.OrderItem
	require.NoError(t, gormDB.First(&gotItem, "id = ?", item.ID).Error)
	assert.Equal(t, "COMPLETE", gotItem.Data["washStatus"])
}

func TestLogSync_KeepsOneRowPerObject(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	outcomes := []bool{false, true, false, false, true}
	for i, synced := range outcomes {
		require.NoError(t, s.LogSync(ctx, &model.SyncLog{
			ObjectID: "order-1",
			Type:     model.SyncTypeOrder,
			Action:   model.SyncActionSync,
			Synced:   synced,
			Value:    map[string]interface{}{"attempt": i},
			SyncedAt: time.Now().UTC(),
		}))
	}
	// A different type for the same object is its own row.
	require.NoError(t, s.LogSync(ctx, &model.SyncLog{ObjectID: "order-1", Type: model.SyncTypeRefund, Action: model.SyncActionSync}))

	var logs []model.SyncLog
	require.NoError(t, gormDB.Where("object_id = ? AND type = ?", "order-1", model.SyncTypeOrder).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Synced)
	assert.Equal(t, json.Number("4"), logs[0].Value["attempt"])

	var total int64
	require.NoError(t, gormDB.Model(&model.SyncLog{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestIsRefunded(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	refunded, err := s.IsRefunded(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, refunded)

	require.NoError(t, s.LogSync(ctx, &model.SyncLog{ObjectID: "order-1", Type: model.SyncTypeRefund, Action: model.SyncActionSync, Synced: false}))
	refunded, err = s.IsRefunded(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, refunded)

	require.NoError(t, s.LogSync(ctx, &model.SyncLog{ObjectID: "order-1", Type: model.SyncTypeRefund, Action: model.SyncActionSync, Synced: true}))
	refunded, err = s.IsRefunded(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, refunded)
}

func TestUnsyncedOrders_PredicateAndPaging(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	synced := "crm-1"
	base := time.Now().UTC().Add(-time.Hour)
	orders := []model.Order{
		{IncrementID: 1, Status: model.OrderStatusPending, Type: model.OrderTypeDefault, CreatedAt: base.Add(1 * time.Minute)},
		{IncrementID: 2, Status: model.OrderStatusDraft, Type: model.OrderTypeDefault, CreatedAt: base.Add(2 * time.Minute)},
		{IncrementID: 3, Status: model.OrderStatusPending, Type: model.OrderTypeTokenize, CreatedAt: base.Add(3 * time.Minute)},
		{IncrementID: 4, Status: model.OrderStatusCompleted, Type: model.OrderTypeTokenize, CreatedAt: base.Add(4 * time.Minute)},
		{IncrementID: 5, Status: model.OrderStatusCompleted, Type: model.OrderTypePackage, CreatedAt: base.Add(5 * time.Minute)},
		{IncrementID: 6, Status: model.OrderStatusCompleted, Type: model.OrderTypeDefault, ExternalID: &synced, CreatedAt: base.Add(6 * time.Minute)},
		{IncrementID: 7, Status: model.OrderStatusFailed, Type: model.OrderTypeDefault, CreatedAt: base.Add(7 * time.Minute)},
	}
	require.NoError(t, gormDB.Create(&orders).Error)

	var got []int64
	var cursor store.Cursor
	for {
		page, err := s.UnsyncedOrders(ctx, cursor, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, o := range page {
			got = append(got, o.IncrementID)
		}
		last := page[len(page)-1]
		cursor = store.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	assert.Equal(t, []int64{1, 4, 5, 7}, got)
}

func TestUnsyncedUsersAndLogs(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	crmID := "crm-u"
	users := []model.User{
		{Name: "a", Type: model.UserTypeClient},
		{Name: "b", Type: model.UserTypeAdmin},
		{Name: "c", Type: model.UserTypeClient, ExternalID: &crmID},
	}
	require.NoError(t, gormDB.Create(&users).Error)

	unsynced, err := s.UnsyncedUsers(ctx, store.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "a", unsynced[0].Name)

	for _, l := range []model.SyncLog{
		{ObjectID: "u1", Type: model.SyncTypeUser, Action: model.SyncActionSync, Synced: false},
		{ObjectID: "o1", Type: model.SyncTypeOrder, Action: model.SyncActionSync, Synced: false},
		{ObjectID: "o2", Type: model.SyncTypeOrder, Action: model.SyncActionSync, Synced: true},
		{ObjectID: "i1", Type: model.SyncTypeOrderItem, Action: model.SyncActionDelete, Synced: false},
	} {
		entry := l
		require.NoError(t, s.LogSync(ctx, &entry))
	}

	all, err := s.UnsyncedLogs(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	orderLogs, err := s.UnsyncedLogs(ctx, 0, 10, []model.SyncType{model.SyncTypeOrder, model.SyncTypeOrderItem})
	require.NoError(t, err)
	require.Len(t, orderLogs, 2)
	assert.Equal(t, "o1", orderLogs[0].ObjectID)
	assert.Equal(t, "i1", orderLogs[1].ObjectID)

	rest, err := s.UnsyncedLogs(ctx, orderLogs[0].ID, 10, []model.SyncType{model.SyncTypeOrder, model.SyncTypeOrderItem})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "i1", rest[0].ObjectID)
}

func TestSetExternalID(t *testing.T) {
	gormDB := testutil.NewSQLite(t)
	s := store.NewGormStore(gormDB)
	ctx := context.Background()

	user := model.User{Name: "a", Type: model.UserTypeClient}
	require.NoError(t, gormDB.Create(&user).Error)

	guid := "crm-42"
	require.NoError(t, s.SetExternalID(ctx, model.SyncTypeUser, user.ID, &guid))
	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "crm-42", *got.ExternalID)

	require.NoError(t, s.SetExternalID(ctx, model.SyncTypeUser, user.ID, nil))
	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExternalID)

	assert.Error(t, s.SetExternalID(ctx, model.SyncType("TICKET"), user.ID, &guid))
}
