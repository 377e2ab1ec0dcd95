package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostDeviceWebhook feeds the raw body to the webhook handler.
// The transport status is always 200; the outcome lives in the body.
func (h *Handler) PostDeviceWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		h.log.Warnf(c.Request.Context(), "failed to read webhook body: %v", err)
		raw = nil
	}
	c.JSON(http.StatusOK, h.webhook.Handle(c.Request.Context(), raw))
}
