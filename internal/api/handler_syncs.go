package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wash-sync-backend/internal/model"
)

// Sweep types accepted by POST /api/syncs/orders.
const (
	SyncOrdersRetry    = "retry"
	SyncOrdersUnsynced = "unSync"
)

type syncOrdersRequest struct {
	Type string `json:"type" binding:"required,oneof=retry unSync"`
}

type syncResponse struct {
	Success  bool     `json:"success"`
	Enqueued int      `json:"enqueued"`
	Errors   []string `json:"errors,omitempty"`
}

func respondSync(c *gin.Context, enqueued int, errs ...error) {
	res := syncResponse{Success: true, Enqueued: enqueued}
	for _, err := range errs {
		if err != nil {
			res.Success = false
			res.Errors = append(res.Errors, err.Error())
		}
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}

// SyncAll runs every reconciliation task once.
func (h *Handler) SyncAll(c *gin.Context) {
	report := h.reconcile.RunAll(c.Request.Context())
	respondSync(c, report.RetriedLogs+report.Users+report.Orders, report.Errors...)
}

// SyncUsers retries failed user syncs and enqueues users never synced.
func (h *Handler) SyncUsers(c *gin.Context) {
	ctx := c.Request.Context()
	retried, retryErr := h.reconcile.RetryFailed(ctx, model.SyncTypeUser)
	unsynced, err := h.reconcile.SyncUnsyncedUsers(ctx)
	respondSync(c, retried+unsynced, retryErr, err)
}

// SyncOrders either retries failed order syncs or enqueues orders never synced.
func (h *Handler) SyncOrders(c *gin.Context) {
	var req syncOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be retry or unSync"})
		return
	}

	ctx := c.Request.Context()
	switch req.Type {
	case SyncOrdersRetry:
		n, err := h.reconcile.RetryFailed(ctx, model.SyncTypeOrder, model.SyncTypeOrderItem, model.SyncTypeOrderTransaction)
		respondSync(c, n, err)
	default:
		n, err := h.reconcile.SyncUnsyncedOrders(ctx)
		respondSync(c, n, err)
	}
}

// SyncOne returns a handler that forces a sync of the record named by :id.
func (h *Handler) SyncOne(t model.SyncType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}
		n, err := h.reconcile.Resync(c.Request.Context(), t, model.SyncActionSync, id)
		respondSync(c, n, err)
	}
}
