package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"pushreg-backend/internal/mw"
	"pushreg-backend/internal/notification"
	"pushreg-backend/internal/registry"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(reg registry.Registry, webpushOptions *webpush.Options, pool *notification.WorkerPool, limit rate.Limit, burst int) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(reg, webpushOptions, pool)

	rateLimiter := mw.RateLimiter(limit, burst)

	// The VAPID key never changes at runtime; cache it aggressively. The
	// registration list is deliberately not cached: devices poll it to
	// converge and must see fresh state.
	cacheStore := cache.New(5*time.Minute, 10*time.Minute)
	caching := mw.Cache(cacheStore, 5*time.Minute)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		api.GET("/registrations", handler.ListRegistrations)
		api.POST("/registrations", handler.CreateRegistration)
		api.POST("/registrations/:id/refresh", handler.RefreshRegistration)
		api.DELETE("/registrations/:id", handler.DeleteRegistration)

		api.POST("/notifications", handler.PostNotification)
	}

	return r
}
