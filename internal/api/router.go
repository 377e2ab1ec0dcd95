package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"wash-sync-backend/config"
	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. devices caches the device
// listing; a nil cache gets a private one that nothing invalidates early.
func NewRouter(h *Handler, cfg config.ServerConfig, devices *mw.ResponseCache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.ByClientIP)

	if devices == nil {
		devices = mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhooks/devices", h.PostDeviceWebhook)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/devices", devices.Handler(), h.GetDevices)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	syncs := r.Group("/api/syncs")
	syncs.Use(mw.AdminToken(cfg.AdminToken))
	{
		syncs.POST("", h.SyncAll)
		syncs.POST("/users", h.SyncUsers)
		syncs.POST("/orders", h.SyncOrders)
		syncs.POST("/orders/:id", h.SyncOne(model.SyncTypeOrder))
		syncs.POST("/users/:id", h.SyncOne(model.SyncTypeUser))
		syncs.POST("/campaigns/:id", h.SyncOne(model.SyncTypeCampaign))
	}

	return r
}
