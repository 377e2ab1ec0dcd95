package syncworker

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"wash-sync-backend/internal/crm"
	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/metrics"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/store"
)

// CRM is the part of the CRM client the processors use.
type CRM interface {
	FindGUID(ctx context.Context, path, field, value string) (string, error)
	Sync(ctx context.Context, req crm.SyncRequest) (string, error)
	Refund(ctx context.Context, req crm.RefundRequest) (string, error)
}

// syncer pushes one record and records the outcome. Shared by every processor.
type syncer struct {
	store store.Store
	crm   CRM
	log   logger.Logger
	now   func() time.Time
}

func newSyncer(s store.Store, c CRM, log logger.Logger) syncer {
	return syncer{store: s, crm: c, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// push replicates one record and always writes its SyncLog row. Failures are
// logged and reported as false, never returned.
func (s syncer) push(ctx context.Context, t model.SyncType, action model.SyncAction, id string, dto, value interface{}) bool {
	synced := s.replicate(ctx, t, action, id, dto)

	entry := &model.SyncLog{
		ObjectID: id,
		Type:     t,
		Action:   action,
		Synced:   synced,
		Value:    snapshot(value),
		SyncedAt: s.now(),
	}
	if err := s.store.LogSync(ctx, entry); err != nil {
		s.log.Errorf(ctx, "failed to record sync of %s %s: %v", t, id, err)
	}

	result := "synced"
	if !synced {
		result = "failed"
	}
	metrics.SyncOutcomesTotal.WithLabelValues(string(t), result).Inc()
	return synced
}

func (s syncer) replicate(ctx context.Context, t model.SyncType, action model.SyncAction, id string, dto interface{}) bool {
	path, err := crm.PathFor(t)
	if err != nil {
		s.log.Errorf(ctx, "cannot sync %s %s: %v", t, id, err)
		return false
	}

	// Creating without a successful lookup could duplicate the record.
	guid, err := s.crm.FindGUID(ctx, path, "id", id)
	if err != nil {
		s.log.Errorf(ctx, "[SYNC %s FAILED] lookup of %s: %v", t, id, err)
		return false
	}

	newGUID, err := s.crm.Sync(ctx, crm.SyncRequest{Type: t, Action: action, GUID: guid, Data: dto})
	if err != nil {
		s.log.Errorf(ctx, "[SYNC %s FAILED] %s: %v", t, id, err)
		return false
	}

	var externalID *string
	if action != model.SyncActionDelete && newGUID != "" {
		externalID = &newGUID
	}
	if err := s.store.SetExternalID(ctx, t, id, externalID); err != nil {
		s.log.Errorf(ctx, "failed to store crm id of %s %s: %v", t, id, err)
	}
	return true
}

func refundValue(req crm.RefundRequest, guid string) datatypes.JSONMap {
	return datatypes.JSONMap{"request": snapshot(req), "guid": guid}
}
