// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into ticket artifacts.  All
// queue traffic is post-confirmation side work: a publish failure must
// never affect a committed booking.
package queue

// BookingConfirmedEvent is published when payment capture confirms a
// booking.  It carries enough information for downstream consumers to
// notify the customer or feed analytics without querying the primary
// database.
type BookingConfirmedEvent struct {
	BookingID        uint64   `json:"booking_id"`
	BookingReference string   `json:"booking_reference"`
	UserID           uint64   `json:"user_id"`
	UserEmail        string   `json:"user_email"`
	EventID          uint64   `json:"event_id"`
	EventTitle       string   `json:"event_title"`
	EventStartsAt    string   `json:"event_starts_at"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents uint64   `json:"total_amount_cents"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// Queue names.  Durable queues on the default exchange, declared by both
// publisher and consumer so startup order does not matter.
const (
	ConfirmedQueueName = "booking.confirmed"
	TicketQueueName    = "ticket.issue"
)
