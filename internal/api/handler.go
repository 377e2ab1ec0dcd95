package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"wash-sync-backend/internal/logger"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/reconcile"
	"wash-sync-backend/internal/store"
	"wash-sync-backend/internal/webhook"
)

// Reconciler is the part of *reconcile.Service the operator routes drive.
type Reconciler interface {
	RetryFailed(ctx context.Context, types ...model.SyncType) (int, error)
	SyncUnsyncedUsers(ctx context.Context) (int, error)
	SyncUnsyncedOrders(ctx context.Context) (int, error)
	Resync(ctx context.Context, t model.SyncType, action model.SyncAction, ids ...string) (int, error)
	RunAll(ctx context.Context) reconcile.Report
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	webhook   *webhook.Handler
	reconcile Reconciler
	webpush   *webpush.Options
	log       logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, wh *webhook.Handler, r Reconciler, webpushOptions *webpush.Options, log logger.Logger) *Handler {
	return &Handler{
		store:     s,
		webhook:   wh,
		reconcile: r,
		webpush:   webpushOptions,
		log:       log,
	}
}
