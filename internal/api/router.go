package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"toolshare-backend/config"
	"toolshare-backend/internal/booking"
	"toolshare-backend/internal/mw"
	"toolshare-backend/internal/presence"
	"toolshare-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, bookings *booking.Service, registry *presence.Registry) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, bookings, registry, cfg.Auth)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	authn := mw.RequireAuth(cfg.Auth.JWTSecret, s)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/register", handler.Register)
		api.POST("/auth/login", handler.Login)

		// Public tool listing is the hottest read path.
		api.GET("/tools", caching, handler.ListTools)
		api.GET("/tools/:id", handler.GetTool)
		api.POST("/tools", authn, handler.CreateTool)
		api.PUT("/tools/:id", authn, handler.UpdateTool)
		api.DELETE("/tools/:id", authn, handler.DeleteTool)

		api.POST("/bookings", authn, handler.CreateBooking)
		api.GET("/bookings", authn, handler.ListBookings)
		api.PUT("/bookings/:id", authn, handler.UpdateBookingStatus)
	}

	// Live notification channel.
	r.GET("/ws", handler.Socket)

	return r
}
