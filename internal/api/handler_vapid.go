package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// timeNow is swapped out in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// GetVAPIDPublicKey returns the VAPID public key clients need to create
// a web push subscription.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
