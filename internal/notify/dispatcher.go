package notify

import (
	"encoding/json"
	"log"
	"time"

	"toolshare-backend/internal/model"
	"toolshare-backend/internal/presence"
)

// Event kinds pushed to connected clients.
const (
	EventNewBookingRequest    = "new_booking_request"
	EventBookingStatusUpdated = "booking_status_updated"
)

// Envelope is the wire shape of a pushed event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ToolRef is the minimal tool info embedded in a booking request event.
type ToolRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserRef is the minimal user info embedded in a booking request event.
type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BookingRequestDetails describes a freshly created booking to the owner.
type BookingRequestDetails struct {
	ID        int64               `json:"id"`
	Tool      ToolRef             `json:"tool"`
	Borrower  UserRef             `json:"borrower"`
	StartDate time.Time           `json:"startDate"`
	EndDate   time.Time           `json:"endDate"`
	Status    model.BookingStatus `json:"status"`
}

// BookingRequestPayload is the data of a new_booking_request event.
type BookingRequestPayload struct {
	Message        string                `json:"message"`
	BookingDetails BookingRequestDetails `json:"bookingDetails"`
}

// StatusUpdatePayload is the data of a booking_status_updated event.
type StatusUpdatePayload struct {
	Message        string        `json:"message"`
	BookingDetails model.Booking `json:"bookingDetails"`
}

// Dispatcher turns booking transitions into best-effort pushes. Delivery is
// at-most-once: if the recipient has no live channel, or the channel cannot
// accept the message without blocking, the event is dropped. The caller's
// next fetch of its own bookings is the fallback source of truth.
type Dispatcher struct {
	registry *presence.Registry
}

// NewDispatcher creates a dispatcher over the given presence registry.
func NewDispatcher(registry *presence.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Notify pushes an event to userID if they are currently present. It never
// blocks and never returns an error; a missed delivery is logged only.
func (d *Dispatcher) Notify(userID int64, eventKind string, payload any) {
	ch, ok := d.registry.Lookup(userID)
	if !ok {
		log.Printf("notify: user %d is not online, dropping %s", userID, eventKind)
		return
	}

	msg, err := json.Marshal(Envelope{Event: eventKind, Data: payload})
	if err != nil {
		log.Printf("notify: failed to marshal %s for user %d: %v", eventKind, userID, err)
		return
	}

	if !ch.TrySend(msg) {
		log.Printf("notify: channel for user %d rejected %s, dropping", userID, eventKind)
	}
}
