package repository

import (
	"context"
	"database/sql"
)

// EventSeatView is an event seat joined with its physical seat, used by the
// public availability listing.
type EventSeatView struct {
	ID         uint64 `json:"id"`
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	Status     string `json:"status"`
}

// EventSeatRepo reads per-event seat state.  All mutations of event_seats
// happen inside BookingRepo transactions; exposing only reads here keeps
// the single-writer discipline obvious.
type EventSeatRepo struct {
	db *sql.DB
}

// NewEventSeatRepo returns a new EventSeatRepo bound to the given database.
func NewEventSeatRepo(db *sql.DB) *EventSeatRepo { return &EventSeatRepo{db: db} }

// ListByEvent returns every seat of an event with its current status,
// ordered by row and number for deterministic seat maps.
func (r *EventSeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]EventSeatView, error) {
	const q = `SELECT es.id, s.id, s.row_label, s.seat_number, es.status
			   FROM event_seats es
			   JOIN seats s ON s.id = es.seat_id
			   WHERE es.event_id = ?
			   ORDER BY s.row_label, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]EventSeatView, 0)
	for rows.Next() {
		var v EventSeatView
		if err := rows.Scan(&v.ID, &v.SeatID, &v.RowLabel, &v.SeatNumber, &v.Status); err != nil {
			return nil, err
		}
		seats = append(seats, v)
	}
	return seats, rows.Err()
}
