package api

import (
	"github.com/gin-gonic/gin"

	"toolshare-backend/config"
	"toolshare-backend/internal/apperr"
	"toolshare-backend/internal/booking"
	"toolshare-backend/internal/model"
	"toolshare-backend/internal/mw"
	"toolshare-backend/internal/presence"
	"toolshare-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	bookings *booking.Service
	presence *presence.Registry
	auth     config.AuthConfig
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, bookings *booking.Service, registry *presence.Registry, auth config.AuthConfig) *Handler {
	return &Handler{
		store:    s,
		bookings: bookings,
		presence: registry,
		auth:     auth,
	}
}

// currentUser returns the authenticated user placed by the auth middleware.
func currentUser(c *gin.Context) *model.User {
	v, ok := c.Get(mw.CurrentUserKey)
	if !ok {
		return nil
	}
	return v.(*model.User)
}

// abortWithError translates a service error into the HTTP response.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}
