package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

func strPtr(s string) *string { return &s }

func newReconciler(store *mockBookingStore, payments *mockPaymentStore, gw *mockGateway, locks *mockLocker, n ConfirmationNotifier) *PaymentReconciler {
	return NewPaymentReconciler(store, payments, gw, locks, n)
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("opens gateway order and records payment", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		gw := new(mockGateway)

		booking := &model.Booking{
			ID: 5, UserID: 42, Status: model.BookingPending,
			BookingReference: "BOOK-abc", TotalAmountCents: 100000,
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}
		store.On("GetByID", ctx, uint64(5)).Return(booking, nil)
		gw.On("CreateOrder", ctx, int64(100000), "BOOK-abc").
			Return(&payment.Order{ID: "order_1", Amount: 100000}, nil)
		payments.On("Create", ctx, mock.MatchedBy(func(p *model.Payment) bool {
			return p.BookingID == 5 && p.GatewayOrderID == "order_1" && p.AmountCents == 100000
		})).Return(nil)

		s := newReconciler(store, payments, gw, new(mockLocker), nil)
		p, err := s.CreatePayment(ctx, 5, 42)
		require.NoError(t, err)
		assert.Equal(t, "order_1", p.GatewayOrderID)
		gw.AssertExpectations(t)
		payments.AssertExpectations(t)
	})

	t.Run("rejects other users", func(t *testing.T) {
		store := new(mockBookingStore)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, Status: model.BookingPending}, nil)

		s := newReconciler(store, new(mockPaymentStore), new(mockGateway), new(mockLocker), nil)
		_, err := s.CreatePayment(ctx, 5, 99)
		assert.ErrorIs(t, err, repository.ErrForbidden)
	})

	t.Run("rejects lapsed holds the sweeper has not reached yet", func(t *testing.T) {
		store := new(mockBookingStore)
		store.On("GetByID", ctx, uint64(5)).Return(&model.Booking{
			ID: 5, UserID: 42, Status: model.BookingPending,
			ExpiresAt: time.Now().Add(-time.Minute),
		}, nil)

		s := newReconciler(store, new(mockPaymentStore), new(mockGateway), new(mockLocker), nil)
		_, err := s.CreatePayment(ctx, 5, 42)
		assert.ErrorIs(t, err, repository.ErrInvalidState)
	})

	t.Run("rejects settled bookings", func(t *testing.T) {
		store := new(mockBookingStore)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, Status: model.BookingConfirmed}, nil)

		s := newReconciler(store, new(mockPaymentStore), new(mockGateway), new(mockLocker), nil)
		_, err := s.CreatePayment(ctx, 5, 42)
		assert.ErrorIs(t, err, repository.ErrInvalidState)
	})
}

func TestOnPaymentCaptured(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms pending booking and releases locks", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		locks := new(mockLocker)
		notifier := new(mockNotifier)

		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5, Status: model.PaymentCreated}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, EventID: 3, Status: model.BookingPending}, nil)
		store.On("SeatIDs", ctx, uint64(5)).Return([]uint64{10, 11}, nil)
		store.On("ConfirmBookingWithPayment", ctx, uint64(5), uint64(9), "pay_1").Return(nil)
		locks.On("Release", ctx, uint64(3), []uint64{10, 11}).Return(nil)
		notifier.On("BookingConfirmed", ctx, uint64(5)).Return()

		s := newReconciler(store, payments, new(mockGateway), locks, notifier)
		require.NoError(t, s.OnPaymentCaptured(ctx, "order_1", "pay_1"))
		store.AssertExpectations(t)
		locks.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)

		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5, Status: model.PaymentSuccess}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, Status: model.BookingConfirmed}, nil)

		s := newReconciler(store, payments, new(mockGateway), new(mockLocker), nil)
		err := s.OnPaymentCaptured(ctx, "order_1", "pay_1")
		assert.ErrorIs(t, err, ErrDuplicateDelivery)
		store.AssertNotCalled(t, "ConfirmBookingWithPayment",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the conditional confirm counts as redelivery", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		notifier := new(mockNotifier)

		// Both deliveries saw the booking PENDING; the store rejects the
		// second conditional update.  No locks touched, no notification.
		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5, Status: model.PaymentCreated}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, EventID: 3, Status: model.BookingPending}, nil)
		store.On("SeatIDs", ctx, uint64(5)).Return([]uint64{10}, nil)
		store.On("ConfirmBookingWithPayment", ctx, uint64(5), uint64(9), "pay_1").
			Return(repository.ErrInvalidState)

		s := newReconciler(store, payments, new(mockGateway), new(mockLocker), notifier)
		err := s.OnPaymentCaptured(ctx, "order_1", "pay_1")
		assert.ErrorIs(t, err, ErrDuplicateDelivery)
		notifier.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything)
	})

	t.Run("capture racing the sweeper does not resurrect the booking", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)

		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5, Status: model.PaymentCreated}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, Status: model.BookingExpired}, nil)

		s := newReconciler(store, payments, new(mockGateway), new(mockLocker), nil)
		err := s.OnPaymentCaptured(ctx, "order_1", "pay_1")
		assert.ErrorIs(t, err, ErrDuplicateDelivery)
	})

	t.Run("unknown order surfaces not found", func(t *testing.T) {
		payments := new(mockPaymentStore)
		payments.On("GetByGatewayOrderID", ctx, "order_x").
			Return(nil, repository.ErrPaymentNotFound)

		s := newReconciler(new(mockBookingStore), payments, new(mockGateway), new(mockLocker), nil)
		err := s.OnPaymentCaptured(ctx, "order_x", "pay_1")
		assert.ErrorIs(t, err, repository.ErrPaymentNotFound)
	})
}

func TestOnPaymentFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels pending booking and frees seats", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		locks := new(mockLocker)

		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, EventID: 3, Status: model.BookingPending}, nil)
		store.On("CancelBookingWithPayment", ctx, uint64(5), uint64(9), model.PaymentFailed).
			Return([]uint64{10}, nil)
		locks.On("Release", ctx, uint64(3), []uint64{10}).Return(nil)

		s := newReconciler(store, payments, new(mockGateway), locks, nil)
		require.NoError(t, s.OnPaymentFailed(ctx, "order_1"))
		store.AssertExpectations(t)
		locks.AssertExpectations(t)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)

		payments.On("GetByGatewayOrderID", ctx, "order_1").
			Return(&model.Payment{ID: 9, BookingID: 5}, nil)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, Status: model.BookingCancelled}, nil)

		s := newReconciler(store, payments, new(mockGateway), new(mockLocker), nil)
		err := s.OnPaymentFailed(ctx, "order_1")
		assert.ErrorIs(t, err, ErrDuplicateDelivery)
		store.AssertNotCalled(t, "CancelBookingWithPayment",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("pending booking without payment is freed directly", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		locks := new(mockLocker)

		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, EventID: 3, Status: model.BookingPending}, nil)
		payments.On("GetByBookingID", ctx, uint64(5)).Return(nil, repository.ErrPaymentNotFound)
		store.On("FreeBooking", ctx, uint64(5), model.BookingCancelled).Return([]uint64{10}, nil)
		locks.On("Release", ctx, uint64(3), []uint64{10}).Return(nil)

		s := newReconciler(store, payments, new(mockGateway), locks, nil)
		refundID, err := s.CancelBooking(ctx, 5, 42)
		require.NoError(t, err)
		assert.Empty(t, refundID)
		locks.AssertExpectations(t)
	})

	t.Run("pending booking with open payment closes the payment too", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		locks := new(mockLocker)

		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, EventID: 3, Status: model.BookingPending}, nil)
		payments.On("GetByBookingID", ctx, uint64(5)).
			Return(&model.Payment{ID: 9, BookingID: 5, Status: model.PaymentCreated}, nil)
		store.On("CancelBookingWithPayment", ctx, uint64(5), uint64(9), model.PaymentFailed).
			Return([]uint64{10}, nil)
		locks.On("Release", ctx, uint64(3), []uint64{10}).Return(nil)

		s := newReconciler(store, payments, new(mockGateway), locks, nil)
		_, err := s.CancelBooking(ctx, 5, 42)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("confirmed booking refunds through the gateway first", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		gw := new(mockGateway)
		locks := new(mockLocker)

		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, EventID: 3, Status: model.BookingConfirmed}, nil)
		payments.On("GetByBookingID", ctx, uint64(5)).
			Return(&model.Payment{
				ID: 9, BookingID: 5, AmountCents: 100000,
				Status: model.PaymentSuccess, GatewayPaymentID: strPtr("pay_1"),
			}, nil)
		gw.On("Refund", ctx, "pay_1", int64(100000)).
			Return(&payment.Refund{ID: "rfnd_1", Status: "processed"}, nil)
		store.On("CancelBookingWithPayment", ctx, uint64(5), uint64(9), model.PaymentRefunded).
			Return([]uint64{10, 11}, nil)
		locks.On("Release", ctx, uint64(3), []uint64{10, 11}).Return(nil)

		s := newReconciler(store, payments, gw, locks, nil)
		refundID, err := s.CancelBooking(ctx, 5, 42)
		require.NoError(t, err)
		assert.Equal(t, "rfnd_1", refundID)
		gw.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("gateway refusal leaves booking untouched", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		gw := new(mockGateway)

		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, Status: model.BookingConfirmed}, nil)
		payments.On("GetByBookingID", ctx, uint64(5)).
			Return(&model.Payment{
				ID: 9, BookingID: 5, AmountCents: 100000,
				Status: model.PaymentSuccess, GatewayPaymentID: strPtr("pay_1"),
			}, nil)
		gw.On("Refund", ctx, "pay_1", int64(100000)).
			Return(nil, errors.New("gateway timeout"))

		s := newReconciler(store, payments, gw, new(mockLocker), nil)
		_, err := s.CancelBooking(ctx, 5, 42)
		require.Error(t, err)
		store.AssertNotCalled(t, "CancelBookingWithPayment",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already refunded at gateway still converges locally", func(t *testing.T) {
		store := new(mockBookingStore)
		payments := new(mockPaymentStore)
		gw := new(mockGateway)
		locks := new(mockLocker)

		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, EventID: 3, Status: model.BookingConfirmed}, nil)
		payments.On("GetByBookingID", ctx, uint64(5)).
			Return(&model.Payment{
				ID: 9, BookingID: 5, AmountCents: 100000,
				Status: model.PaymentSuccess, GatewayPaymentID: strPtr("pay_1"),
			}, nil)
		gw.On("Refund", ctx, "pay_1", int64(100000)).
			Return(nil, payment.ErrAlreadyRefunded)
		store.On("CancelBookingWithPayment", ctx, uint64(5), uint64(9), model.PaymentRefunded).
			Return([]uint64{10}, nil)
		locks.On("Release", ctx, uint64(3), []uint64{10}).Return(nil)

		s := newReconciler(store, payments, gw, locks, nil)
		refundID, err := s.CancelBooking(ctx, 5, 42)
		require.NoError(t, err)
		assert.Empty(t, refundID)
		store.AssertExpectations(t)
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		store := new(mockBookingStore)
		store.On("GetByID", ctx, uint64(5)).
			Return(&model.Booking{ID: 5, UserID: 42, Status: model.BookingPending}, nil)

		s := newReconciler(store, new(mockPaymentStore), new(mockGateway), new(mockLocker), nil)
		_, err := s.CancelBooking(ctx, 5, 99)
		assert.ErrorIs(t, err, repository.ErrForbidden)
	})

	t.Run("terminal bookings cannot be cancelled again", func(t *testing.T) {
		for _, status := range []string{model.BookingCancelled, model.BookingExpired} {
			store := new(mockBookingStore)
			store.On("GetByID", ctx, uint64(5)).
				Return(&model.Booking{ID: 5, UserID: 42, Status: status}, nil)

			s := newReconciler(store, new(mockPaymentStore), new(mockGateway), new(mockLocker), nil)
			_, err := s.CancelBooking(ctx, 5, 42)
			assert.ErrorIs(t, err, repository.ErrInvalidState, status)
		}
	})
}
