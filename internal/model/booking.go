package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusDeclined  BookingStatus = "declined"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusReviewed  BookingStatus = "reviewed"
)

// transitions lists the legal edges of the booking lifecycle. Statuses with
// no outgoing edges are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusApproved, StatusDeclined, StatusCancelled},
	StatusApproved:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusReviewed},
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusReviewed:  {},
}

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is permitted from s.
func (s BookingStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether the edge from -> to exists in the lifecycle.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a request-to-borrow record linking a borrower, a tool and the
// tool's owner over a time window. Records are append-only: they are created
// once and mutated only through the booking service's transitions.
type Booking struct {
	ID         int64         `gorm:"primaryKey" json:"id"`
	ToolID     int64         `gorm:"index;not null" json:"toolId"`
	BorrowerID int64         `gorm:"index;not null" json:"borrowerId"`
	OwnerID    int64         `gorm:"index;not null" json:"ownerId"` // denormalized from the tool at creation
	StartDate  time.Time     `gorm:"not null" json:"startDate"`
	EndDate    time.Time     `gorm:"not null" json:"endDate"`
	Status     BookingStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt  time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updatedAt"`

	// Associations
	Tool     Tool `gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE" json:"tool,omitempty"`
	Borrower User `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
	Owner    User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

// Active reports whether the booking currently claims the tool, i.e. it is
// neither terminal nor completed.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusApproved
}
