package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// QueueNotifier publishes booking confirmations to the message broker so
// that notification and ticket-issuing consumers pick them up.  All
// failures are logged and swallowed; the booking is already confirmed and
// a broker outage must not surface to the customer.
type QueueNotifier struct {
	bookings *repository.BookingRepo
	users    *repository.UserRepo
}

// NewQueueNotifier returns a notifier that assembles confirmation events
// from the durable store.
func NewQueueNotifier(bookings *repository.BookingRepo, users *repository.UserRepo) *QueueNotifier {
	return &QueueNotifier{bookings: bookings, users: users}
}

// BookingConfirmed loads the confirmed booking with its event and seat
// details and publishes it on both the notification and ticket queues.
func (n *QueueNotifier) BookingConfirmed(ctx context.Context, bookingID uint64) {
	booking, err := n.bookings.GetByID(ctx, bookingID)
	if err != nil {
		logger.Warn("confirmation publish skipped, booking load failed",
			zap.Uint64("booking_id", bookingID), zap.Error(err))
		return
	}
	detail, err := n.bookings.GetDetailForUser(ctx, bookingID, booking.UserID)
	if err != nil {
		logger.Warn("confirmation publish skipped, detail load failed",
			zap.Uint64("booking_id", bookingID), zap.Error(err))
		return
	}
	user, err := n.users.GetByID(ctx, booking.UserID)
	if err != nil {
		logger.Warn("confirmation publish skipped, user load failed",
			zap.Uint64("booking_id", bookingID), zap.Error(err))
		return
	}

	ev := queue.BookingConfirmedEvent{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		UserID:           user.ID,
		UserEmail:        user.Email,
		EventID:          detail.EventID,
		EventTitle:       detail.EventTitle,
		EventStartsAt:    detail.EventStartsAt,
		SeatLabels:       detail.Seats,
		TotalAmountCents: booking.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := queue.PublishBookingConfirmed(ctx, ev); err != nil {
		logger.Warn("booking.confirmed publish failed",
			zap.Uint64("booking_id", bookingID), zap.Error(err))
	}
	if err := queue.PublishTicketIssue(ctx, ev); err != nil {
		logger.Warn("ticket.issue publish failed",
			zap.Uint64("booking_id", bookingID), zap.Error(err))
	}
}
