package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gate-access-backend/config"
	"gate-access-backend/internal/gate"
	"gate-access-backend/internal/mw"
	"gate-access-backend/internal/store"
)

// NewRouter creates and configures a new Gin router. cacheStore is shared
// with the change-notification flush so ledger writes purge read-side caches.
func NewRouter(svc *gate.Service, s store.Store, webpushOptions *webpush.Options, cacheStore *cache.Cache, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(svc, s, webpushOptions)

	rps := rate.Limit(10)
	if cfg != nil && cfg.RateLimitPerSec > 0 {
		rps = rate.Limit(cfg.RateLimitPerSec)
	}
	burst := 5
	if cfg != nil && cfg.RateLimitBurst > 0 {
		burst = cfg.RateLimitBurst
	}
	rateLimiter := mw.RateLimiter(rps, burst)

	cacheTTL := 30 * time.Second
	if cfg != nil && cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Movement ledger
		api.POST("/movements", handler.PostMovement)
		api.GET("/movements", caching, handler.GetMovements)
		api.GET("/movements/pending", handler.GetPendingMovements)
		api.POST("/movements/:id/resolution", handler.PostMovementResolution)

		// Occupancy views
		api.GET("/occupancy", caching, handler.GetOccupancyBatch)
		api.GET("/occupancy/:ref", handler.GetOccupancy)

		// Guest visit workflow
		api.POST("/visits", handler.PostVisit)
		api.GET("/visits", handler.GetVisits)
		api.GET("/visits/:id", handler.GetVisit)
		api.POST("/visits/:id/resolution", handler.PostVisitResolution)
		api.GET("/guests/lookup", handler.GetGuestByCode)

		// Entity directory
		api.GET("/persons", caching, handler.GetPersons)
		api.POST("/persons", handler.PostPersons)
		api.GET("/vendors", caching, handler.GetVendors)
		api.POST("/vendors", handler.PostVendors)

		// Officer push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
