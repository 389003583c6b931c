// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrSeatConflict indicates that a requested seat is no longer
// available, while ErrInvalidState signals that an operation was
// attempted against a booking whose status does not permit it.
package repository

import "errors"

// ErrSeatConflict is returned when one or more requested seats are not
// AVAILABLE at validation time, or when the booking_seats uniqueness
// constraint rejects an insert. Handlers should translate this into an
// HTTP 409 response.
var ErrSeatConflict = errors.New("seats no longer available")

// ErrBookingNotFound is returned when no booking exists for the given
// identifier. Handlers should translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrPaymentNotFound is returned when no payment row matches the given
// identifier or gateway order id. For webhook processing this usually
// means a delivery for an order this service never created.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrInvalidState is returned when a state transition is requested that
// the booking's current status does not allow, such as cancelling an
// already EXPIRED booking. Handlers should translate this into an HTTP
// 400 response.
var ErrInvalidState = errors.New("invalid booking state for operation")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")
