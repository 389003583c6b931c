package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/lock"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

const (
	testPrice = uint64(50000)
	testHold  = 5 * time.Minute
)

func TestHoldSeats_Success(t *testing.T) {
	locks := new(mockLocker)
	store := new(mockBookingStore)
	ctx := context.Background()

	want := &model.Booking{ID: 7, EventID: 3, UserID: 42, Status: model.BookingPending}
	locks.On("Acquire", ctx, uint64(3), []uint64{10, 11}, "user:42").Return(nil)
	store.On("ReconcileStaleHolds", ctx, []uint64{10, 11}).Return(nil)
	store.On("CreateBookingIfAvailable", ctx, uint64(3), []uint64{10, 11}, uint64(42), testPrice, testHold).
		Return(want, nil)

	c := NewBookingCoordinator(locks, store, testPrice, testHold)
	got, err := c.HoldSeats(ctx, 42, 3, []uint64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A successful hold keeps the lock keys; payment settlement or the TTL
	// cleans them up later.
	locks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	locks.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestHoldSeats_DeduplicatesAndSortsSeats(t *testing.T) {
	locks := new(mockLocker)
	store := new(mockBookingStore)
	ctx := context.Background()

	locks.On("Acquire", ctx, uint64(3), []uint64{10, 11, 12}, "user:1").Return(nil)
	store.On("ReconcileStaleHolds", ctx, []uint64{10, 11, 12}).Return(nil)
	store.On("CreateBookingIfAvailable", ctx, uint64(3), []uint64{10, 11, 12}, uint64(1), testPrice, testHold).
		Return(&model.Booking{ID: 1}, nil)

	c := NewBookingCoordinator(locks, store, testPrice, testHold)
	_, err := c.HoldSeats(ctx, 1, 3, []uint64{12, 10, 11, 10, 12})
	require.NoError(t, err)
	locks.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestHoldSeats_LockConflict(t *testing.T) {
	locks := new(mockLocker)
	store := new(mockBookingStore)
	ctx := context.Background()

	locks.On("Acquire", ctx, uint64(3), []uint64{10}, "user:42").Return(lock.ErrSeatsLocked)

	c := NewBookingCoordinator(locks, store, testPrice, testHold)
	_, err := c.HoldSeats(ctx, 42, 3, []uint64{10})
	assert.ErrorIs(t, err, repository.ErrSeatConflict)

	// The lock layer already rolled its own keys back; nothing must reach
	// the store.
	store.AssertNotCalled(t, "CreateBookingIfAvailable",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	locks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
}

func TestHoldSeats_StoreConflictReleasesLocks(t *testing.T) {
	locks := new(mockLocker)
	store := new(mockBookingStore)
	ctx := context.Background()

	locks.On("Acquire", ctx, uint64(3), []uint64{10, 11}, "user:42").Return(nil)
	store.On("ReconcileStaleHolds", ctx, []uint64{10, 11}).Return(nil)
	store.On("CreateBookingIfAvailable", ctx, uint64(3), []uint64{10, 11}, uint64(42), testPrice, testHold).
		Return(nil, repository.ErrSeatConflict)
	locks.On("Release", ctx, uint64(3), []uint64{10, 11}).Return(nil)

	c := NewBookingCoordinator(locks, store, testPrice, testHold)
	_, err := c.HoldSeats(ctx, 42, 3, []uint64{10, 11})
	assert.ErrorIs(t, err, repository.ErrSeatConflict)
	locks.AssertExpectations(t)
}

func TestHoldSeats_ReconcileFailureReleasesLocks(t *testing.T) {
	locks := new(mockLocker)
	store := new(mockBookingStore)
	ctx := context.Background()
	boom := errors.New("db down")

	locks.On("Acquire", ctx, uint64(3), []uint64{10}, "user:42").Return(nil)
	store.On("ReconcileStaleHolds", ctx, []uint64{10}).Return(boom)
	locks.On("Release", ctx, uint64(3), []uint64{10}).Return(nil)

	c := NewBookingCoordinator(locks, store, testPrice, testHold)
	_, err := c.HoldSeats(ctx, 42, 3, []uint64{10})
	assert.ErrorIs(t, err, boom)
	locks.AssertExpectations(t)
	store.AssertNotCalled(t, "CreateBookingIfAvailable",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHoldSeats_RejectsBadRequests(t *testing.T) {
	c := NewBookingCoordinator(new(mockLocker), new(mockBookingStore), testPrice, testHold)

	t.Run("no seats", func(t *testing.T) {
		_, err := c.HoldSeats(context.Background(), 1, 1, nil)
		assert.Error(t, err)
	})

	t.Run("too many seats", func(t *testing.T) {
		seats := make([]uint64, maxSeatsPerBooking+1)
		for i := range seats {
			seats[i] = uint64(i + 1)
		}
		_, err := c.HoldSeats(context.Background(), 1, 1, seats)
		assert.Error(t, err)
	})
}
