package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// ErrEventNotFound is returned when no event exists for the given id.
var ErrEventNotFound = errors.New("event not found")

// EventRepo reads events.  Event creation and editing belong to an external
// admin surface, so only lookups live here.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetByID fetches a single event.  ErrEventNotFound is returned when the
// id is unknown.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, venue, starts_at, created_at FROM events WHERE id = ?`,
		eventID,
	).Scan(&e.ID, &e.Title, &e.Venue, &e.StartsAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns all events ordered by start time, soonest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, venue, starts_at, created_at FROM events ORDER BY starts_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Venue, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
