package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// PaymentRepo provides data access to the payments table.  Status
// transitions that must be atomic with booking updates live on BookingRepo;
// this repository covers creation and lookups.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a CREATED payment row for a booking and populates the
// generated ID and timestamps on the provided record.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (booking_id, amount_cents, provider, gateway_order_id, status)
		 VALUES (?, ?, ?, ?, ?)`,
		p.BookingID, p.AmountCents, p.Provider, p.GatewayOrderID, model.PaymentCreated,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PaymentCreated
	return r.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM payments WHERE id = ?`, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PaymentRepo) scanOne(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	var gatewayPaymentID sql.NullString
	err := row.Scan(&p.ID, &p.BookingID, &p.AmountCents, &p.Provider,
		&p.GatewayOrderID, &gatewayPaymentID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if gatewayPaymentID.Valid {
		v := gatewayPaymentID.String
		p.GatewayPaymentID = &v
	}
	return &p, nil
}

const paymentColumns = `id, booking_id, amount_cents, provider, gateway_order_id,
						gateway_payment_id, status, created_at, updated_at`

// GetByGatewayOrderID locates the payment created for a gateway order.
// Webhook deliveries are correlated to bookings through this lookup.
// ErrPaymentNotFound is returned when no row matches.
func (r *PaymentRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = ? ORDER BY id DESC LIMIT 1`,
		gatewayOrderID))
}

// GetByBookingID returns the most recent payment attempt for a booking.
// ErrPaymentNotFound is returned when the booking has no payment yet.
func (r *PaymentRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY id DESC LIMIT 1`,
		bookingID))
}
