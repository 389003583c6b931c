package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// mysqlDuplicateEntry is the server error code raised when an insert
// violates a unique key, here the booking_seats exclusivity constraint.
const mysqlDuplicateEntry = 1062

// BookingRepo owns the booking lifecycle in the durable store.  Every
// mutating method runs as a single database transaction, so callers never
// observe BOOKED seats without a matching booking or vice versa.  All
// timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle for callers that need to compose their
// own transactions (currently only tests).
func (r *BookingRepo) DB() *sql.DB { return r.db }

// begin starts a transaction and returns it together with a finish helper
// that rolls back unless commit was reached.
func (r *BookingRepo) begin(ctx context.Context) (*sql.Tx, func(*error), error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	finish := func(errp *error) {
		if *errp != nil {
			_ = tx.Rollback()
			return
		}
		if err := tx.Commit(); err != nil {
			*errp = fmt.Errorf("commit: %w", err)
		}
	}
	return tx, finish, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// ReconcileStaleHolds purges booking_seats rows whose owning booking is
// already CANCELLED or EXPIRED and resets the corresponding event_seats to
// AVAILABLE.  It runs before seat validation in booking creation so that
// seats freed by a terminal booking are immediately reusable even when the
// expiry sweeper has not fired yet.  Passing no seats is a no-op.
func (r *BookingRepo) ReconcileStaleHolds(ctx context.Context, eventSeatIDs []uint64) (err error) {
	if len(eventSeatIDs) == 0 {
		return nil
	}
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { finish(&err) }()

	// Find junction rows that belong to terminal bookings.  Only those may
	// be removed; rows of PENDING/CONFIRMED bookings are live holds.
	query := `SELECT bs.id, bs.event_seat_id
			  FROM booking_seats bs
			  JOIN bookings b ON b.id = bs.booking_id
			  WHERE bs.event_seat_id IN (` + placeholders(len(eventSeatIDs)) + `)
				AND b.status IN ('CANCELLED','EXPIRED')`
	rows, err := tx.QueryContext(ctx, query, idArgs(eventSeatIDs)...)
	if err != nil {
		return fmt.Errorf("query stale holds: %w", err)
	}
	var rowIDs, seatIDs []uint64
	for rows.Next() {
		var rowID, seatID uint64
		if scanErr := rows.Scan(&rowID, &seatID); scanErr != nil {
			rows.Close()
			return scanErr
		}
		rowIDs = append(rowIDs, rowID)
		seatIDs = append(seatIDs, seatID)
	}
	if err = rows.Close(); err != nil {
		return err
	}
	if len(rowIDs) == 0 {
		return nil
	}

	del := `DELETE FROM booking_seats WHERE id IN (` + placeholders(len(rowIDs)) + `)`
	if _, err = tx.ExecContext(ctx, del, idArgs(rowIDs)...); err != nil {
		return fmt.Errorf("delete stale holds: %w", err)
	}
	upd := `UPDATE event_seats SET status = 'AVAILABLE' WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	if _, err = tx.ExecContext(ctx, upd, idArgs(seatIDs)...); err != nil {
		return fmt.Errorf("reset event seats: %w", err)
	}
	return nil
}

// CreateBookingIfAvailable re-validates that every requested event seat is
// AVAILABLE and, within the same transaction, inserts a PENDING booking
// with a fresh unique reference, one booking_seats row per seat, and flips
// the seats to BOOKED.  If any seat is unavailable the whole transaction
// aborts with ErrSeatConflict and nothing is written.  The hold window
// determines expires_at.
func (r *BookingRepo) CreateBookingIfAvailable(ctx context.Context, eventID uint64, eventSeatIDs []uint64, userID uint64, pricePerSeatCents uint64, holdWindow time.Duration) (b *model.Booking, err error) {
	if len(eventSeatIDs) == 0 {
		return nil, errors.New("no seats requested")
	}
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	// Lock and validate the seats.  FOR UPDATE serialises concurrent
	// attempts on the same rows for the duration of the transaction.
	query := `SELECT id FROM event_seats
			  WHERE event_id = ? AND status = 'AVAILABLE'
				AND id IN (` + placeholders(len(eventSeatIDs)) + `)
			  FOR UPDATE`
	args := append([]interface{}{eventID}, idArgs(eventSeatIDs)...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("validate seats: %w", err)
	}
	available := make(map[uint64]struct{}, len(eventSeatIDs))
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		available[id] = struct{}{}
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(available) != len(eventSeatIDs) {
		err = ErrSeatConflict
		return nil, err
	}

	now := time.Now().UTC()
	booking := &model.Booking{
		UserID:           userID,
		EventID:          eventID,
		BookingReference: "BOOK-" + uuid.NewString(),
		Status:           model.BookingPending,
		TotalAmountCents: pricePerSeatCents * uint64(len(eventSeatIDs)),
		ExpiresAt:        now.Add(holdWindow),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, event_id, booking_reference, status, total_amount_cents, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		booking.UserID, booking.EventID, booking.BookingReference, booking.Status,
		booking.TotalAmountCents, booking.ExpiresAt.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	booking.ID = uint64(id)

	insert := `INSERT INTO booking_seats (booking_id, event_seat_id) VALUES `
	seatArgs := make([]interface{}, 0, len(eventSeatIDs)*2)
	for i, sid := range eventSeatIDs {
		if i > 0 {
			insert += ","
		}
		insert += "(?, ?)"
		seatArgs = append(seatArgs, booking.ID, sid)
	}
	if _, err = tx.ExecContext(ctx, insert, seatArgs...); err != nil {
		// The unique key on event_seat_id is the last line of defence
		// against a double booking; surface it as a plain conflict.
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			err = ErrSeatConflict
		}
		return nil, err
	}

	upd := `UPDATE event_seats SET status = 'BOOKED' WHERE id IN (` + placeholders(len(eventSeatIDs)) + `)`
	if _, err = tx.ExecContext(ctx, upd, idArgs(eventSeatIDs)...); err != nil {
		return nil, fmt.Errorf("mark seats booked: %w", err)
	}

	// Read back DB-populated timestamps.
	err = tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM bookings WHERE id = ?`, booking.ID,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// freeBookingTx deletes the booking's junction rows, resets its event seats
// to AVAILABLE and moves the booking to the given terminal status.  It
// returns the freed event seat ids so callers can release lock keys.
func freeBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, terminalStatus string) ([]uint64, error) {
	if terminalStatus != model.BookingCancelled && terminalStatus != model.BookingExpired {
		return nil, fmt.Errorf("not a terminal status: %s", terminalStatus)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT event_seat_id FROM booking_seats WHERE booking_id = ?`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("query booking seats: %w", err)
	}
	var seatIDs []uint64
	for rows.Next() {
		var sid uint64
		if scanErr := rows.Scan(&sid); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		seatIDs = append(seatIDs, sid)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM booking_seats WHERE booking_id = ?`, bookingID); err != nil {
		return nil, fmt.Errorf("delete booking seats: %w", err)
	}
	if len(seatIDs) > 0 {
		upd := `UPDATE event_seats SET status = 'AVAILABLE' WHERE id IN (` + placeholders(len(seatIDs)) + `)`
		if _, err = tx.ExecContext(ctx, upd, idArgs(seatIDs)...); err != nil {
			return nil, fmt.Errorf("reset event seats: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ?`, terminalStatus, bookingID); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return seatIDs, nil
}

// FreeBooking releases a booking's seats and marks it EXPIRED or CANCELLED
// in one transaction.  The returned seat ids let the caller clean up lock
// keys afterwards.
func (r *BookingRepo) FreeBooking(ctx context.Context, bookingID uint64, terminalStatus string) (seatIDs []uint64, err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()
	return freeBookingTx(ctx, tx, bookingID, terminalStatus)
}

// ConfirmBookingWithPayment marks the booking CONFIRMED and its payment
// SUCCESS (recording the gateway payment id) in a single transaction.  The
// event seats stay BOOKED; they were flipped at creation time.  The update
// is conditional on the booking still being PENDING, so two racing
// deliveries cannot both confirm; the loser gets ErrInvalidState.
func (r *BookingRepo) ConfirmBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, gatewayPaymentID string) (err error) {
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { finish(&err) }()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'CONFIRMED' WHERE id = ? AND status = 'PENDING'`, bookingID)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrInvalidState
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = 'SUCCESS', gateway_payment_id = ? WHERE id = ?`,
		gatewayPaymentID, paymentID); err != nil {
		return fmt.Errorf("mark payment success: %w", err)
	}
	return nil
}

// CancelBookingWithPayment moves the payment to the given terminal payment
// status (FAILED or REFUNDED) and frees the booking as CANCELLED, all in
// one transaction.  It returns the freed event seat ids.
func (r *BookingRepo) CancelBookingWithPayment(ctx context.Context, bookingID, paymentID uint64, paymentStatus string) (seatIDs []uint64, err error) {
	if paymentStatus != model.PaymentFailed && paymentStatus != model.PaymentRefunded {
		return nil, fmt.Errorf("not a terminal payment status: %s", paymentStatus)
	}
	tx, finish, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { finish(&err) }()

	if _, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`, paymentStatus, paymentID); err != nil {
		return nil, fmt.Errorf("mark payment %s: %w", paymentStatus, err)
	}
	return freeBookingTx(ctx, tx, bookingID, model.BookingCancelled)
}

// GetByID loads a booking by primary key.  ErrBookingNotFound is returned
// when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, event_id, booking_reference, status,
					  total_amount_cents, expires_at, created_at, updated_at
			   FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&b.ID, &b.UserID, &b.EventID, &b.BookingReference, &b.Status,
		&b.TotalAmountCents, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SeatIDs returns the event seat ids currently linked to the booking.  The
// slice is empty for bookings whose seats have already been freed.
func (r *BookingRepo) SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_seat_id FROM booking_seats WHERE booking_id = ?`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpiredBooking is a PENDING booking whose hold window has lapsed, with
// the seats it still references.  Produced by ListExpiredPending for the
// expiry sweeper.
type ExpiredBooking struct {
	ID           uint64
	EventID      uint64
	EventSeatIDs []uint64
}

// ListExpiredPending returns all PENDING bookings with expires_at in the
// past, oldest first, each with its linked event seat ids.
func (r *BookingRepo) ListExpiredPending(ctx context.Context) ([]ExpiredBooking, error) {
	const q = `SELECT b.id, b.event_id, bs.event_seat_id
			   FROM bookings b
			   LEFT JOIN booking_seats bs ON bs.booking_id = b.id
			   WHERE b.status = 'PENDING' AND b.expires_at < UTC_TIMESTAMP()
			   ORDER BY b.expires_at, b.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiredBooking
	index := make(map[uint64]int)
	for rows.Next() {
		var id, eventID uint64
		var seatID sql.NullInt64
		if err := rows.Scan(&id, &eventID, &seatID); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, ExpiredBooking{ID: id, EventID: eventID})
		}
		if seatID.Valid {
			out[i].EventSeatIDs = append(out[i].EventSeatIDs, uint64(seatID.Int64))
		}
	}
	return out, rows.Err()
}

// BookingDetail is a booking together with event information and seat
// labels, assembled for display to the customer.
type BookingDetail struct {
	ID               uint64   `json:"id"`
	BookingReference string   `json:"booking_reference"`
	Status           string   `json:"status"`
	TotalAmountCents uint64   `json:"total_amount_cents"`
	ExpiresAt        string   `json:"expires_at"`
	EventID          uint64   `json:"event_id"`
	EventTitle       string   `json:"event_title"`
	EventStartsAt    string   `json:"event_starts_at"`
	Seats            []string `json:"seats"`
}

// detailQuery is shared by GetDetailForUser and ListByUser.
const detailQuery = `SELECT b.id, b.booking_reference, b.status, b.total_amount_cents,
							b.expires_at, e.id, e.title, e.starts_at
					 FROM bookings b
					 JOIN events e ON e.id = b.event_id`

func scanDetail(scanner interface{ Scan(...interface{}) error }) (BookingDetail, error) {
	var d BookingDetail
	var expiresAt, startsAt time.Time
	err := scanner.Scan(&d.ID, &d.BookingReference, &d.Status, &d.TotalAmountCents,
		&expiresAt, &d.EventID, &d.EventTitle, &startsAt)
	if err != nil {
		return d, err
	}
	d.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	d.EventStartsAt = startsAt.UTC().Format(time.RFC3339)
	return d, nil
}

// seatLabels loads the human readable seat labels for a set of bookings
// and attaches them via the index map.
func (r *BookingRepo) seatLabels(ctx context.Context, details []BookingDetail, index map[uint64]int) error {
	if len(details) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	query := `SELECT bs.booking_id, s.row_label, s.seat_number
			  FROM booking_seats bs
			  JOIN event_seats es ON es.id = bs.event_seat_id
			  JOIN seats s ON s.id = es.seat_id
			  WHERE bs.booking_id IN (` + placeholders(len(ids)) + `)
			  ORDER BY s.row_label, s.seat_number`
	rows, err := r.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID uint64
		var seat model.Seat
		if err := rows.Scan(&bookingID, &seat.RowLabel, &seat.SeatNumber); err != nil {
			return err
		}
		if i, ok := index[bookingID]; ok {
			details[i].Seats = append(details[i].Seats, seat.Label())
		}
	}
	return rows.Err()
}

// GetDetailForUser returns a single booking with event and seat details,
// enforcing ownership.  ErrBookingNotFound is returned for an unknown id
// and ErrForbidden when the booking belongs to another user.
func (r *BookingRepo) GetDetailForUser(ctx context.Context, bookingID, userID uint64) (*BookingDetail, error) {
	var ownerID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM bookings WHERE id = ?`, bookingID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrForbidden
	}

	row := r.db.QueryRowContext(ctx, detailQuery+` WHERE b.id = ?`, bookingID)
	d, err := scanDetail(row)
	if err != nil {
		return nil, err
	}
	d.Seats = []string{}
	details := []BookingDetail{d}
	if err := r.seatLabels(ctx, details, map[uint64]int{d.ID: 0}); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListByUser returns all bookings of a user, newest first, with event and
// seat details.  When no bookings exist an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		detailQuery+` WHERE b.user_id = ? ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]BookingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		d.Seats = []string{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.seatLabels(ctx, details, index); err != nil {
		return nil, err
	}
	return details, nil
}
