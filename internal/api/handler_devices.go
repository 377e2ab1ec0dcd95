package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wash-sync-backend/internal/mw"
	"wash-sync-backend/internal/statemachine"
)

// DevicesPath is the cached device listing.
const DevicesPath = "/api/devices"

type deviceCacheHook struct {
	cache *mw.ResponseCache
}

// InvalidateDevices drops cached device listings once a machine changes occupancy,
// so boards polling DevicesPath never wait out the cache ttl after a wash ends.
func InvalidateDevices(c *mw.ResponseCache) statemachine.PostCommitHook {
	return deviceCacheHook{cache: c}
}

func (h deviceCacheHook) OnCommit(_ context.Context, sig statemachine.Signal) error {
	if sig.Kind == statemachine.SignalDeviceChanged {
		h.cache.Invalidate(DevicesPath)
	}
	return nil
}

// GetDevices lists machines and their occupancy, optionally for one station.
func (h *Handler) GetDevices(c *gin.Context) {
	devices, err := h.store.ListDevices(c.Request.Context(), c.Query("stationId"))
	if err != nil {
		h.log.Errorf(c.Request.Context(), "failed to list devices: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list devices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
