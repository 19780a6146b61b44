package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"pushreg-backend/internal/mw"
	"pushreg-backend/internal/notification"
	"pushreg-backend/internal/registry"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	reg     registry.Registry
	webpush *webpush.Options
	pool    *notification.WorkerPool
}

// NewHandler creates a new API handler.
func NewHandler(reg registry.Registry, webpushOptions *webpush.Options, pool *notification.WorkerPool) *Handler {
	return &Handler{
		reg:     reg,
		webpush: webpushOptions,
		pool:    pool,
	}
}

// userID extracts the authenticated user from the request, aborting with
// 401 when absent. Authentication itself is terminated upstream; only
// the resulting identity header reaches this service.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader(mw.UserHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return "", false
	}
	return id, true
}
