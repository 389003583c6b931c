package model

import "time"

// Event is a bookable happening at the venue.  Event CRUD is owned by an
// external admin surface; this service only reads events to validate and
// describe bookings.
//
// Fields:
//  ID        – primary key identifier.
//  Title     – display title of the event.
//  Venue     – free-form venue name.
//  StartsAt  – when the event begins (UTC).
//  CreatedAt – creation timestamp.
type Event struct {
	ID        uint64    // events.id
	Title     string    // events.title
	Venue     string    // events.venue
	StartsAt  time.Time // events.starts_at
	CreatedAt time.Time // events.created_at
}
