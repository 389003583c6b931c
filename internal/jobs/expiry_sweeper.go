// Package jobs hosts the background workers that run alongside the HTTP
// server.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// ExpiredLister enumerates PENDING bookings whose hold window has lapsed.
// Implemented by repository.BookingRepo.
type ExpiredLister interface {
	ListExpiredPending(ctx context.Context) ([]repository.ExpiredBooking, error)
	FreeBooking(ctx context.Context, bookingID uint64, terminalStatus string) ([]uint64, error)
}

// ExpirySweeper periodically expires PENDING bookings that were never
// paid, returning their seats to the pool.  Each booking is freed in its
// own transaction so one failure never blocks the rest of the batch.
type ExpirySweeper struct {
	store    ExpiredLister
	locks    service.SeatLocker
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewExpirySweeper builds a sweeper that fires every interval.
func NewExpirySweeper(store ExpiredLister, locks service.SeatLocker, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		store:    store,
		locks:    locks,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.  One sweep fires
// immediately so a restart catches holds that lapsed while the process
// was down.
func (s *ExpirySweeper) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Sweep(context.Background())
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the in-flight sweep to
// finish.
func (s *ExpirySweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Sweep expires every lapsed PENDING booking once.  Errors on individual
// bookings are logged and skipped.  Exported so tests and operators can
// trigger a cycle directly.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	metrics.SweepRuns.Inc()

	expired, err := s.store.ListExpiredPending(ctx)
	if err != nil {
		logger.Error("expiry sweep list failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	freed := 0
	for _, b := range expired {
		if _, err := s.store.FreeBooking(ctx, b.ID, model.BookingExpired); err != nil {
			logger.Error("expire booking failed",
				zap.Uint64("booking_id", b.ID), zap.Error(err))
			continue
		}
		freed++
		metrics.BookingsExpired.Inc()

		// Lock keys usually expired before the hold window did; delete
		// any that remain (a raised TTL can outlive the hold).
		if len(b.EventSeatIDs) > 0 {
			if err := s.locks.Release(ctx, b.EventID, b.EventSeatIDs); err != nil {
				logger.Warn("seat lock release failed during sweep",
					zap.Uint64("booking_id", b.ID), zap.Error(err))
			}
		}
	}
	logger.Info("expiry sweep finished",
		zap.Int("candidates", len(expired)), zap.Int("expired", freed))
}
