package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"departure-board-backend/config"
	"departure-board-backend/internal/metrics"
	"departure-board-backend/internal/mw"
	"departure-board-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, webpushOptions *webpush.Options, server config.ServerConfig, outputDir string) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, webpushOptions, outputDir)

	burst := max(int(server.RateLimitPerSec/2), 1)
	rateLimiter := mw.RateLimiter(rate.Limit(server.RateLimitPerSec), burst, server.RequestIPHeader)

	ttl := time.Duration(server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/routes", caching, handler.GetRoutes)
		api.GET("/routes/:id/states", caching, handler.GetRouteStates)
		api.GET("/routes/:id/board", caching, handler.GetRouteBoard)
		api.GET("/routes/:id/image", caching, handler.GetRouteImage)
		api.GET("/routes/:id/cycles", caching, handler.GetRouteCycles)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
