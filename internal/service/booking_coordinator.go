// Package service contains the orchestration layer between HTTP handlers
// and the storage/lock/gateway components.  Services depend on small
// consumer-side interfaces so each collaborator can be replaced in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/lock"
	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// SeatLocker grants and releases short-lived distributed holds on event
// seats.  Implemented by lock.SeatLock.
type SeatLocker interface {
	Acquire(ctx context.Context, eventID uint64, eventSeatIDs []uint64, holderID string) error
	Release(ctx context.Context, eventID uint64, eventSeatIDs []uint64) error
}

// BookingStore is the durable booking lifecycle as used by the services.
// Implemented by repository.BookingRepo.
type BookingStore interface {
	ReconcileStaleHolds(ctx context.Context, eventSeatIDs []uint64) error
	CreateBookingIfAvailable(ctx context.Context, eventID uint64, eventSeatIDs []uint64, userID uint64, pricePerSeatCents uint64, holdWindow time.Duration) (*model.Booking, error)
	GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error)
	SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error)
	FreeBooking(ctx context.Context, bookingID uint64, terminalStatus string) ([]uint64, error)
	ConfirmBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, gatewayPaymentID string) error
	CancelBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, paymentStatus string) ([]uint64, error)
}

// maxSeatsPerBooking caps one hold request.  Larger requests are almost
// certainly abuse and would hold long row locks during validation.
const maxSeatsPerBooking = 10

// BookingCoordinator drives the two-phase hold flow: acquire the
// distributed seat lock first, then create the PENDING booking in the
// durable store.  The lock keeps concurrent attempts from reaching the
// database; the store's constraints remain the final authority.
type BookingCoordinator struct {
	locks             SeatLocker
	bookings          BookingStore
	pricePerSeatCents uint64
	holdWindow        time.Duration
}

// NewBookingCoordinator wires a coordinator from its collaborators.
func NewBookingCoordinator(locks SeatLocker, bookings BookingStore, pricePerSeatCents uint64, holdWindow time.Duration) *BookingCoordinator {
	return &BookingCoordinator{
		locks:             locks,
		bookings:          bookings,
		pricePerSeatCents: pricePerSeatCents,
		holdWindow:        holdWindow,
	}
}

// dedupeSeats sorts and deduplicates the requested seat ids so that a
// request naming the same seat twice does not deadlock against itself.
func dedupeSeats(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HoldSeats places a PENDING hold on the requested seats for the user.
//
// The flow is: acquire all seat locks atomically, purge stale junction
// rows left behind by terminal bookings, then create the booking inside
// one transaction.  If the store rejects the attempt the locks taken here
// are released immediately; on success the locks are intentionally kept
// until payment settles or the TTL lapses.
func (c *BookingCoordinator) HoldSeats(ctx context.Context, userID, eventID uint64, eventSeatIDs []uint64) (*model.Booking, error) {
	seats := dedupeSeats(eventSeatIDs)
	if len(seats) == 0 {
		return nil, errors.New("no seats requested")
	}
	if len(seats) > maxSeatsPerBooking {
		return nil, fmt.Errorf("at most %d seats per booking", maxSeatsPerBooking)
	}

	holder := fmt.Sprintf("user:%d", userID)
	if err := c.locks.Acquire(ctx, eventID, seats, holder); err != nil {
		if errors.Is(err, lock.ErrSeatsLocked) {
			metrics.SeatConflicts.Inc()
			return nil, repository.ErrSeatConflict
		}
		return nil, err
	}

	// From here on, any failure must give the locks back so the seats do
	// not stay blocked for the full TTL.
	if err := c.bookings.ReconcileStaleHolds(ctx, seats); err != nil {
		c.releaseQuietly(ctx, eventID, seats)
		return nil, err
	}

	booking, err := c.bookings.CreateBookingIfAvailable(ctx, eventID, seats, userID, c.pricePerSeatCents, c.holdWindow)
	if err != nil {
		c.releaseQuietly(ctx, eventID, seats)
		if errors.Is(err, repository.ErrSeatConflict) {
			metrics.SeatConflicts.Inc()
		}
		return nil, err
	}

	metrics.BookingsCreated.Inc()
	logger.Info("booking hold created",
		zap.Uint64("booking_id", booking.ID),
		zap.String("booking_reference", booking.BookingReference),
		zap.Uint64("event_id", eventID),
		zap.Uint64("user_id", userID),
		zap.Int("seats", len(seats)),
	)
	return booking, nil
}

// releaseQuietly drops lock keys and only logs on failure; the keys expire
// on their own either way.
func (c *BookingCoordinator) releaseQuietly(ctx context.Context, eventID uint64, seats []uint64) {
	if err := c.locks.Release(ctx, eventID, seats); err != nil {
		logger.Warn("seat lock release failed",
			zap.Uint64("event_id", eventID), zap.Error(err))
	}
}
