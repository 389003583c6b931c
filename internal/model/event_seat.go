package model

// EventSeat statuses.  A seat is BOOKED exactly while one non-terminal
// booking references it through a booking_seats row.
const (
	SeatAvailable = "AVAILABLE"
	SeatBooked    = "BOOKED"
)

// EventSeat is the bookable unit: one row per (event, seat) pair.  It is
// mutated only inside booking-state transactions so a reader can never
// observe a BOOKED seat without its owning booking, or vice versa.
//
// Fields:
//  ID      – primary key identifier.
//  EventID – event to which this seat instance belongs.
//  SeatID  – the physical seat.
//  Status  – availability status (AVAILABLE, BOOKED).
type EventSeat struct {
	ID      uint64 // event_seats.id
	EventID uint64 // event_seats.event_id
	SeatID  uint64 // event_seats.seat_id
	Status  string // event_seats.status
}
