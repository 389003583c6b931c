package model

import "strconv"

// Seat describes a physical seat in the venue.  Seats are created once at
// venue setup and are never mutated or deleted; availability lives on the
// per-event EventSeat, not here.
//
// Fields:
//  ID         – primary key identifier.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
type Seat struct {
	ID         uint64 // seats.id
	RowLabel   string // seats.row_label
	SeatNumber uint32 // seats.seat_number
}

// Label renders the human readable seat name, e.g. "A12".
func (s Seat) Label() string {
	return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
