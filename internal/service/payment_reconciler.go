package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// PaymentStore is the payment persistence surface used by the reconciler.
// Implemented by repository.PaymentRepo.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)
	GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error)
}

// ConfirmationNotifier fans out post-confirmation side effects (customer
// notification, ticket issuing).  Implementations must be best-effort:
// they are invoked after the confirming transaction has committed and
// must never fail the request.
type ConfirmationNotifier interface {
	BookingConfirmed(ctx context.Context, bookingID uint64)
}

// NopNotifier discards confirmation events.  Used in tests and when the
// message broker is not configured.
type NopNotifier struct{}

// BookingConfirmed implements ConfirmationNotifier.
func (NopNotifier) BookingConfirmed(context.Context, uint64) {}

// PaymentReconciler applies asynchronous gateway outcomes to bookings.
// Every entry point is idempotent: redelivered webhooks and double
// cancellations observe the booking already out of PENDING and do nothing.
type PaymentReconciler struct {
	bookings BookingStore
	payments PaymentStore
	gateway  payment.Gateway
	locks    SeatLocker
	notifier ConfirmationNotifier
}

// NewPaymentReconciler wires a reconciler from its collaborators.  A nil
// notifier is replaced with NopNotifier.
func NewPaymentReconciler(bookings BookingStore, payments PaymentStore, gw payment.Gateway, locks SeatLocker, notifier ConfirmationNotifier) *PaymentReconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PaymentReconciler{
		bookings: bookings,
		payments: payments,
		gateway:  gw,
		locks:    locks,
		notifier: notifier,
	}
}

// CreatePayment opens a gateway order for a PENDING booking and records a
// CREATED payment row.  Only the booking owner may pay; expired or settled
// bookings are rejected with ErrInvalidState.
func (s *PaymentReconciler) CreatePayment(ctx context.Context, bookingID, userID uint64) (*model.Payment, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if booking.Status != model.BookingPending || time.Now().After(booking.ExpiresAt) {
		return nil, repository.ErrInvalidState
	}

	order, err := s.gateway.CreateOrder(ctx, int64(booking.TotalAmountCents), booking.BookingReference)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	p := &model.Payment{
		BookingID:      booking.ID,
		AmountCents:    booking.TotalAmountCents,
		Provider:       "razorpay",
		GatewayOrderID: order.ID,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("payment order created",
		zap.Uint64("booking_id", booking.ID),
		zap.Uint64("payment_id", p.ID),
		zap.String("gateway_order_id", order.ID),
	)
	return p, nil
}

// ErrDuplicateDelivery reports that a webhook referred to a booking that
// already left PENDING.  Callers still acknowledge the delivery; the error
// exists only so the outcome can be counted separately.
var ErrDuplicateDelivery = errors.New("booking already settled")

// OnPaymentCaptured confirms the booking tied to the captured gateway
// order.  A redelivery, or a capture racing the sweeper, finds the booking
// out of PENDING and returns ErrDuplicateDelivery without touching state.
func (s *PaymentReconciler) OnPaymentCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	p, err := s.payments.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	booking, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if booking.Status != model.BookingPending {
		logger.Info("capture ignored, booking not pending",
			zap.Uint64("booking_id", booking.ID),
			zap.String("status", booking.Status),
		)
		return ErrDuplicateDelivery
	}

	// Seat ids are read before the confirm commit purely for lock cleanup;
	// CONFIRMED bookings keep their junction rows either way.
	seatIDs, err := s.bookings.SeatIDs(ctx, booking.ID)
	if err != nil {
		return err
	}
	if err := s.bookings.ConfirmBookingWithPayment(ctx, booking.ID, p.ID, gatewayPaymentID); err != nil {
		// The conditional update lost to a concurrent delivery or the
		// sweeper after the PENDING read above; treat it as redelivery.
		if errors.Is(err, repository.ErrInvalidState) {
			return ErrDuplicateDelivery
		}
		return err
	}
	s.releaseLocks(ctx, booking.EventID, seatIDs)

	logger.Info("booking confirmed",
		zap.Uint64("booking_id", booking.ID),
		zap.String("booking_reference", booking.BookingReference),
		zap.String("gateway_payment_id", gatewayPaymentID),
	)
	s.notifier.BookingConfirmed(ctx, booking.ID)
	return nil
}

// OnPaymentFailed cancels the booking tied to the failed gateway order and
// frees its seats.  Like capture handling it is a no-op once the booking
// has left PENDING.
func (s *PaymentReconciler) OnPaymentFailed(ctx context.Context, gatewayOrderID string) error {
	p, err := s.payments.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	booking, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if booking.Status != model.BookingPending {
		return ErrDuplicateDelivery
	}

	seatIDs, err := s.bookings.CancelBookingWithPayment(ctx, booking.ID, p.ID, model.PaymentFailed)
	if err != nil {
		return err
	}
	s.releaseLocks(ctx, booking.EventID, seatIDs)

	logger.Info("booking cancelled after failed payment",
		zap.Uint64("booking_id", booking.ID),
		zap.String("gateway_order_id", gatewayOrderID),
	)
	return nil
}

// CancelBooking cancels a booking on behalf of its owner.
//
// PENDING bookings are freed directly.  CONFIRMED bookings are refunded
// through the gateway first; only after the gateway accepts (or reports
// the payment already refunded) is the local state moved to REFUNDED and
// CANCELLED.  A gateway refusal leaves the booking untouched so the
// operation can be retried.  The returned refund id is empty for
// non-refund cancellations.
func (s *PaymentReconciler) CancelBooking(ctx context.Context, bookingID, userID uint64) (string, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if booking.UserID != userID {
		return "", repository.ErrForbidden
	}

	switch booking.Status {
	case model.BookingPending:
		return "", s.cancelPending(ctx, booking)
	case model.BookingConfirmed:
		return s.cancelConfirmed(ctx, booking)
	default:
		return "", repository.ErrInvalidState
	}
}

func (s *PaymentReconciler) cancelPending(ctx context.Context, booking *model.Booking) error {
	var seatIDs []uint64
	p, err := s.payments.GetByBookingID(ctx, booking.ID)
	switch {
	case errors.Is(err, repository.ErrPaymentNotFound):
		seatIDs, err = s.bookings.FreeBooking(ctx, booking.ID, model.BookingCancelled)
	case err == nil:
		seatIDs, err = s.bookings.CancelBookingWithPayment(ctx, booking.ID, p.ID, model.PaymentFailed)
	}
	if err != nil {
		return err
	}
	s.releaseLocks(ctx, booking.EventID, seatIDs)
	logger.Info("pending booking cancelled", zap.Uint64("booking_id", booking.ID))
	return nil
}

func (s *PaymentReconciler) cancelConfirmed(ctx context.Context, booking *model.Booking) (string, error) {
	p, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return "", err
	}
	if p.Status != model.PaymentSuccess || p.GatewayPaymentID == nil {
		return "", repository.ErrInvalidState
	}

	// The gateway call comes first: money must be on its way back before
	// the seats are given up.  "Already refunded" counts as success so a
	// crash between the refund and the local commit converges on retry.
	var refundID string
	refund, err := s.gateway.Refund(ctx, *p.GatewayPaymentID, int64(p.AmountCents))
	switch {
	case errors.Is(err, payment.ErrAlreadyRefunded):
		logger.Warn("refund already processed at gateway",
			zap.Uint64("booking_id", booking.ID),
			zap.String("gateway_payment_id", *p.GatewayPaymentID),
		)
	case err != nil:
		return "", fmt.Errorf("gateway refund: %w", err)
	default:
		refundID = refund.ID
	}

	seatIDs, err := s.bookings.CancelBookingWithPayment(ctx, booking.ID, p.ID, model.PaymentRefunded)
	if err != nil {
		return "", err
	}
	s.releaseLocks(ctx, booking.EventID, seatIDs)
	logger.Info("confirmed booking refunded and cancelled",
		zap.Uint64("booking_id", booking.ID),
		zap.String("refund_id", refundID),
	)
	return refundID, nil
}

// releaseLocks clears lock keys best-effort; the TTL covers any failure.
func (s *PaymentReconciler) releaseLocks(ctx context.Context, eventID uint64, seatIDs []uint64) {
	if len(seatIDs) == 0 {
		return
	}
	if err := s.locks.Release(ctx, eventID, seatIDs); err != nil {
		logger.Warn("seat lock release failed",
			zap.Uint64("event_id", eventID), zap.Error(err))
	}
}
