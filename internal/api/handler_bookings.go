package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"toolshare-backend/internal/model"
)

type createBookingRequest struct {
	ToolID    int64     `json:"toolId" binding:"required"`
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}

type updateBookingRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateBooking files a borrow request for the authenticated user.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), currentUser(c), req.ToolID, req.StartDate, req.EndDate)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings returns every booking the authenticated user participates in,
// as borrower or owner, most recent first.
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.store.ListBookingsForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve bookings"})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// UpdateBookingStatus applies a lifecycle transition requested by the
// authenticated user.
func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookings.SetStatus(c.Request.Context(), id, currentUser(c).ID, model.BookingStatus(req.Status))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
