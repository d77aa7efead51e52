package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"toolshare-backend/internal/apperr"
	"toolshare-backend/internal/model"
	"toolshare-backend/internal/notify"
	"toolshare-backend/internal/store"
)

// Notifier delivers a best-effort event to a user. Delivery failures are the
// notifier's problem; the booking service never treats them as errors.
type Notifier interface {
	Notify(userID int64, eventKind string, payload any)
}

// Service owns every legal transition of a booking record. All mutations on
// one booking id are serialized through a keyed lock; the approval transition
// additionally serializes against other bookings on the same tool, because it
// is the only transition with a cross-entity side effect.
type Service struct {
	store    store.Store
	notifier Notifier
	locks    *keyedLocks
}

// NewService creates the booking service.
func NewService(s store.Store, n Notifier) *Service {
	return &Service{store: s, notifier: n, locks: newKeyedLocks()}
}

// Create validates and persists a new pending booking for the borrower and
// notifies the tool's owner. Availability is not touched here; only the
// approval transition claims the tool.
func (s *Service) Create(ctx context.Context, borrower *model.User, toolID int64, start, end time.Time) (*model.Booking, error) {
	if !start.Before(end) {
		return nil, apperr.InvalidArgument("startDate must be before endDate")
	}

	tool, err := s.store.GetTool(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if tool.OwnerID == borrower.ID {
		return nil, apperr.InvalidOperation("you cannot book your own tool")
	}
	if !tool.Availability {
		return nil, apperr.InvalidOperation("tool %q is currently unavailable", tool.Name)
	}

	active, err := s.store.HasActiveBooking(ctx, toolID, borrower.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.InvalidOperation("you already have an active request for this tool")
	}

	booking := &model.Booking{
		ToolID:     tool.ID,
		BorrowerID: borrower.ID,
		OwnerID:    tool.OwnerID,
		StartDate:  start.UTC(),
		EndDate:    end.UTC(),
		Status:     model.StatusPending,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.notifier.Notify(tool.OwnerID, notify.EventNewBookingRequest, notify.BookingRequestPayload{
		Message: fmt.Sprintf("You have a new booking request for your tool: %s", tool.Name),
		BookingDetails: notify.BookingRequestDetails{
			ID:        booking.ID,
			Tool:      notify.ToolRef{ID: tool.ID, Name: tool.Name},
			Borrower:  notify.UserRef{ID: borrower.ID, Name: borrower.Name},
			StartDate: booking.StartDate,
			EndDate:   booking.EndDate,
			Status:    booking.Status,
		},
	})

	return booking, nil
}

// SetStatus applies a user-initiated transition. The actor must be a
// legitimate party to the requested transition and the edge must exist in
// the lifecycle; the record is left untouched otherwise.
func (s *Service) SetStatus(ctx context.Context, bookingID, actorID int64, next model.BookingStatus) (*model.Booking, error) {
	if !next.Valid() {
		return nil, apperr.InvalidArgument("unknown booking status %q", string(next))
	}

	unlock := s.locks.lock(bookingKey(bookingID))
	defer unlock()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := authorize(actorID, b, next); err != nil {
		return nil, err
	}
	if !model.CanTransition(b.Status, next) {
		return nil, apperr.InvalidOperation("cannot change a %s booking to %s", b.Status, next)
	}

	prev := b.Status
	if next == model.StatusApproved {
		if err := s.approve(ctx, b); err != nil {
			return nil, err
		}
	} else {
		b.Status = next
		if err := s.store.SaveBooking(ctx, b); err != nil {
			return nil, fmt.Errorf("failed to update booking %d: %w", b.ID, err)
		}
		if prev == model.StatusApproved {
			// The approved booking no longer claims the tool.
			s.releaseTool(ctx, b)
		}
	}

	recipient := b.BorrowerID
	message := fmt.Sprintf("Your request for %q has been %s.", b.Tool.Name, b.Status)
	if actorID == b.BorrowerID {
		recipient = b.OwnerID
		message = fmt.Sprintf("The booking for your tool %q is now %s.", b.Tool.Name, b.Status)
	}
	s.notifier.Notify(recipient, notify.EventBookingStatusUpdated, notify.StatusUpdatePayload{
		Message:        message,
		BookingDetails: *b,
	})

	return b, nil
}

// approve commits the pending -> approved transition and claims the tool.
// Callers hold the booking lock; approve additionally holds the tool lock so
// two approvals on the same tool cannot interleave. The booking's status is
// the source of truth: if the tool record cannot be loaded or saved, the
// transition still commits and the owner is told about the inconsistency.
func (s *Service) approve(ctx context.Context, b *model.Booking) error {
	unlockTool := s.locks.lock(toolKey(b.ToolID))
	defer unlockTool()

	tool, terr := s.store.GetTool(ctx, b.ToolID)
	if terr == nil && !tool.Availability {
		return apperr.InvalidOperation("tool %q is currently unavailable", tool.Name)
	}

	b.Status = model.StatusApproved
	if err := s.store.SaveBooking(ctx, b); err != nil {
		return fmt.Errorf("failed to approve booking %d: %w", b.ID, err)
	}

	if terr != nil {
		log.Printf("booking %d approved but tool %d could not be loaded: %v", b.ID, b.ToolID, terr)
		s.notifyAvailabilityDrift(b)
		return nil
	}

	tool.Availability = false
	if err := s.store.SaveTool(ctx, tool); err != nil {
		log.Printf("booking %d approved but availability of tool %d could not be updated: %v", b.ID, tool.ID, err)
		s.notifyAvailabilityDrift(b)
	}
	return nil
}

// Reconcile is the scheduler-driven transition to completed. It is
// idempotent: anything other than an approved booking is left untouched.
func (s *Service) Reconcile(ctx context.Context, bookingID int64) (*model.Booking, error) {
	unlock := s.locks.lock(bookingKey(bookingID))
	defer unlock()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.StatusApproved {
		return b, nil
	}

	b.Status = model.StatusCompleted
	if err := s.store.SaveBooking(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to complete booking %d: %w", b.ID, err)
	}
	s.releaseTool(ctx, b)

	s.notifier.Notify(b.BorrowerID, notify.EventBookingStatusUpdated, notify.StatusUpdatePayload{
		Message: fmt.Sprintf("Your borrowing time for %q has expired. "+
			"Please return the tool to the owner in the same condition.", b.Tool.Name),
		BookingDetails: *b,
	})
	s.notifier.Notify(b.OwnerID, notify.EventBookingStatusUpdated, notify.StatusUpdatePayload{
		Message: fmt.Sprintf("The borrowing time for %q has expired. "+
			"The borrower has been notified.", b.Tool.Name),
		BookingDetails: *b,
	})

	return b, nil
}

// releaseTool restores the tool's availability after an approved booking
// left the approved state. Best-effort: the booking's persisted status is
// authoritative and a later sweep or approval can repair the flag.
func (s *Service) releaseTool(ctx context.Context, b *model.Booking) {
	unlockTool := s.locks.lock(toolKey(b.ToolID))
	defer unlockTool()

	tool, err := s.store.GetTool(ctx, b.ToolID)
	if err != nil {
		log.Printf("booking %d: could not load tool %d to restore availability: %v", b.ID, b.ToolID, err)
		return
	}
	if tool.Availability {
		return
	}
	tool.Availability = true
	if err := s.store.SaveTool(ctx, tool); err != nil {
		log.Printf("booking %d: could not restore availability of tool %d: %v", b.ID, tool.ID, err)
	}
}

func (s *Service) notifyAvailabilityDrift(b *model.Booking) {
	s.notifier.Notify(b.OwnerID, notify.EventBookingStatusUpdated, notify.StatusUpdatePayload{
		Message: fmt.Sprintf("Booking %d was approved, but the tool's availability could not be updated. "+
			"It will be repaired automatically.", b.ID),
		BookingDetails: *b,
	})
}

// authorize is the single policy point deciding whether the actor may apply
// the requested transition to the booking.
func authorize(actorID int64, b *model.Booking, next model.BookingStatus) error {
	switch next {
	case model.StatusApproved, model.StatusDeclined, model.StatusCompleted:
		if actorID != b.OwnerID {
			return apperr.Unauthorized("only the tool owner may %s this booking", verb(next))
		}
	case model.StatusCancelled:
		if actorID != b.OwnerID && actorID != b.BorrowerID {
			return apperr.Unauthorized("only a participant may cancel this booking")
		}
	case model.StatusReviewed:
		if actorID != b.BorrowerID {
			return apperr.Unauthorized("only the borrower may review this booking")
		}
	default:
		return apperr.InvalidOperation("booking status %s cannot be requested", next)
	}
	return nil
}

func verb(status model.BookingStatus) string {
	switch status {
	case model.StatusApproved:
		return "approve"
	case model.StatusDeclined:
		return "decline"
	case model.StatusCompleted:
		return "complete"
	default:
		return "update"
	}
}
