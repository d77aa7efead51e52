package scheduler

import (
	"context"
	"log"
	"time"

	"toolshare-backend/config"
	"toolshare-backend/internal/model"
	"toolshare-backend/internal/store"
)

// Reconciler advances a single booking whose approved window has elapsed.
// Satisfied by the booking service.
type Reconciler interface {
	Reconcile(ctx context.Context, bookingID int64) (*model.Booking, error)
}

// Service is the reconciliation scheduler. On a fixed interval it sweeps for
// approved bookings whose end date has passed and drives each of them through
// the completed transition. It is the only writer of completed that does not
// originate in a direct user action.
type Service struct {
	cfg      config.SchedulerConfig
	store    store.Store
	bookings Reconciler
	now      func() time.Time // injectable clock
}

// NewService creates the scheduler.
func NewService(cfg config.SchedulerConfig, s store.Store, r Reconciler) *Service {
	return &Service{
		cfg:      cfg,
		store:    s,
		bookings: r,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests use it to move a booking's
// window into the past without sleeping.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Run starts the sweep loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Scheduler is disabled. Not starting.")
		return
	}
	log.Println("Starting reconciliation scheduler...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce performs a single reconciliation pass. The whole tick is skipped
// when the record store is unreachable; a failure on one booking does not
// abort the rest of the tick.
func (s *Service) SweepOnce(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.store.Ping(tickCtx); err != nil {
		log.Printf("Skipping reconciliation tick: record store unreachable: %v", err)
		return
	}

	now := s.now().UTC()
	expired, err := s.store.FindExpiredApproved(tickCtx, now)
	if err != nil {
		log.Printf("Skipping reconciliation tick: query for expired bookings failed: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Printf("Reconciling %d expired bookings...", len(expired))
	for _, b := range expired {
		if _, err := s.bookings.Reconcile(tickCtx, b.ID); err != nil {
			log.Printf("Failed to reconcile booking %d: %v", b.ID, err)
			continue
		}
	}
}
