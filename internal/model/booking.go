package model

import "time"

// Booking statuses.  PENDING and CONFIRMED are non-terminal with respect to
// seat ownership; CANCELLED and EXPIRED release their seats.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingExpired   = "EXPIRED"
)

// Booking records a user's hold or purchase of one or more seats for an
// event.  A booking is created PENDING with a five minute expiry window;
// payment capture confirms it, payment failure or expiry frees it.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who made the booking.
//  EventID          – event being booked.
//  BookingReference – globally unique opaque reference ("BOOK-<uuid>").
//  Status           – PENDING, CONFIRMED, CANCELLED or EXPIRED.
//  TotalAmountCents – total price in minor currency units.
//  ExpiresAt        – when a PENDING booking lapses (UTC).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64    // bookings.id
	UserID           uint64    // bookings.user_id
	EventID          uint64    // bookings.event_id
	BookingReference string    // bookings.booking_reference
	Status           string    // bookings.status
	TotalAmountCents uint64    // bookings.total_amount_cents
	ExpiresAt        time.Time // bookings.expires_at
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
}

// Terminal reports whether the booking no longer owns its seats.
func (b *Booking) Terminal() bool {
	return b.Status == BookingCancelled || b.Status == BookingExpired
}

// BookingSeat links a booking to one event seat.  Rows exist only while
// the owning booking is non-terminal; the database-level unique key on
// event_seat_id is the authoritative exclusivity constraint.
//
// Fields:
//  ID          – primary key identifier.
//  BookingID   – owning booking.
//  EventSeatID – the seat instance held or purchased.
type BookingSeat struct {
	ID          uint64 // booking_seats.id
	BookingID   uint64 // booking_seats.booking_id
	EventSeatID uint64 // booking_seats.event_seat_id
}
