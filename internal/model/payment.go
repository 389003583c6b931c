package model

import "time"

// Payment statuses.  A payment is CREATED when the gateway order is opened
// and moves to exactly one of SUCCESS, FAILED or REFUNDED afterwards.
const (
	PaymentCreated  = "CREATED"
	PaymentSuccess  = "SUCCESS"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"
)

// Payment tracks one payment attempt against a booking through the external
// gateway.  The gateway order id correlates asynchronous webhook deliveries
// back to the booking; the gateway payment id arrives with capture.
//
// Fields:
//  ID               – primary key identifier.
//  BookingID        – booking being paid for.
//  AmountCents      – amount in minor currency units.
//  Provider         – gateway name, informational.
//  GatewayOrderID   – order id issued by the gateway at creation.
//  GatewayPaymentID – payment id delivered by the capture webhook (nullable).
//  Status           – CREATED, SUCCESS, FAILED or REFUNDED.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Payment struct {
	ID               uint64    // payments.id
	BookingID        uint64    // payments.booking_id
	AmountCents      uint64    // payments.amount_cents
	Provider         string    // payments.provider
	GatewayOrderID   string    // payments.gateway_order_id
	GatewayPaymentID *string   // payments.gateway_payment_id (nullable)
	Status           string    // payments.status
	CreatedAt        time.Time // payments.created_at
	UpdatedAt        time.Time // payments.updated_at
}
