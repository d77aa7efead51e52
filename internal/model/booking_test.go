package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to approved", StatusPending, StatusApproved, true},
		{"pending to declined", StatusPending, StatusDeclined, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"pending to reviewed", StatusPending, StatusReviewed, false},
		{"approved to completed", StatusApproved, StatusCompleted, true},
		{"approved to cancelled", StatusApproved, StatusCancelled, true},
		{"approved to declined", StatusApproved, StatusDeclined, false},
		{"approved to pending", StatusApproved, StatusPending, false},
		{"completed to reviewed", StatusCompleted, StatusReviewed, true},
		{"completed to approved", StatusCompleted, StatusApproved, false},
		{"declined is terminal", StatusDeclined, StatusPending, false},
		{"cancelled is terminal", StatusCancelled, StatusApproved, false},
		{"reviewed is terminal", StatusReviewed, StatusCompleted, false},
		{"unknown source", BookingStatus("bogus"), StatusApproved, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDeclined.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusReviewed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.False(t, StatusCompleted.Terminal())
	// Unknown statuses are not terminal, they are invalid.
	assert.False(t, BookingStatus("bogus").Terminal())
}

func TestValid(t *testing.T) {
	for _, s := range []BookingStatus{
		StatusPending, StatusApproved, StatusDeclined,
		StatusCompleted, StatusCancelled, StatusReviewed,
	} {
		assert.True(t, s.Valid(), "expected %s to be valid", s)
	}
	assert.False(t, BookingStatus("expired").Valid(), "the display-only expired label must never be accepted")
	assert.False(t, BookingStatus("").Valid())
}

func TestActive(t *testing.T) {
	assert.True(t, (&Booking{Status: StatusPending}).Active())
	assert.True(t, (&Booking{Status: StatusApproved}).Active())
	assert.False(t, (&Booking{Status: StatusCompleted}).Active())
	assert.False(t, (&Booking{Status: StatusDeclined}).Active())
}
