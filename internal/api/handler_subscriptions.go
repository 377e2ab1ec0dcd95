package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wash-sync-backend/internal/model"
)

// maxSubscribedDevices bounds how many machines one browser can wait on.
const maxSubscribedDevices = 20

var errUnknownDevices = errors.New("unknown devices")

type putSubscriptionRequest struct {
	Endpoint          string   `json:"endpoint" binding:"required"`
	P256DH            string   `json:"p256dh" binding:"required"`
	Auth              string   `json:"auth" binding:"required"`
	SubscribedDevices []string `json:"subscribed_devices"`
}

// subscribedDevice is what a browser needs to label a pending "machine available" push.
type subscribedDevice struct {
	ID        string             `json:"id"`
	DeviceNo  string             `json:"deviceNo"`
	Name      string             `json:"name"`
	StationID string             `json:"stationId"`
	Status    model.DeviceStatus `json:"status"`
}

type subscriptionResponse struct {
	SubscribedDevices []string           `json:"subscribed_devices"`
	Devices           []subscribedDevice `json:"devices"`
}

func newSubscriptionResponse(devices []*model.Device) subscriptionResponse {
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceNo < devices[j].DeviceNo })
	res := subscriptionResponse{
		SubscribedDevices: make([]string, 0, len(devices)),
		Devices:           make([]subscribedDevice, 0, len(devices)),
	}
	for _, d := range devices {
		res.SubscribedDevices = append(res.SubscribedDevices, d.ID)
		res.Devices = append(res.Devices, subscribedDevice{
			ID:        d.ID,
			DeviceNo:  d.DeviceNo,
			Name:      d.Name,
			StationID: d.StationID,
			Status:    d.Status,
		})
	}
	return res
}

// uniqueIDs drops blanks and repeats, keeping the first occurrence.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PutSubscription creates or replaces a subscription and the devices it waits on.
// Every device id must be known; otherwise nothing is saved and the unknown ids are returned.
func (h *Handler) PutSubscription(c *gin.Context) {
	ctx := c.Request.Context()

	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ids := uniqueIDs(req.SubscribedDevices)
	if len(ids) > maxSubscribedDevices {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many devices", "max": maxSubscribedDevices})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	var devices []*model.Device
	var unknown []string
	err := h.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&devices).Error; err != nil {
				return err
			}
		}
		if len(devices) != len(ids) {
			found := make(map[string]struct{}, len(devices))
			for _, d := range devices {
				found[d.ID] = struct{}{}
			}
			for _, id := range ids {
				if _, ok := found[id]; !ok {
					unknown = append(unknown, id)
				}
			}
			return errUnknownDevices
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}
		return tx.Model(&subscription).Association("Devices").Replace(&devices)
	})
	switch {
	case errors.Is(err, errUnknownDevices):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown devices", "unknown_devices": unknown})
		return
	case err != nil:
		h.log.Errorf(ctx, "failed to save subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}

	h.log.Debugf(ctx, "subscription now waits on %d devices", len(devices))
	c.JSON(http.StatusCreated, newSubscriptionResponse(devices))
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription and its device links.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	ctx := c.Request.Context()

	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sub := model.PushSubscription{Endpoint: req.Endpoint}
	var deleted int64
	err := h.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sub).Association("Devices").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&sub)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		h.log.Errorf(ctx, "failed to delete subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads a query value without URL decoding; push endpoints are
// stored exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the devices a subscription waits on.
func (h *Handler) GetSubscription(c *gin.Context) {
	ctx := c.Request.Context()

	endpoint, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var subscription model.PushSubscription
	err := h.store.DB().WithContext(ctx).Preload("Devices").First(&subscription, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		h.log.Errorf(ctx, "failed to load subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, newSubscriptionResponse(subscription.Devices))
}
