package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// BookingHandler exposes the booking lifecycle over HTTP.  The coordinator
// drives seat holds, the reconciler drives cancellation; reads go straight
// to the repository.
type BookingHandler struct {
	Coordinator *service.BookingCoordinator
	Reconciler  *service.PaymentReconciler
	Bookings    *repository.BookingRepo
	Events      *repository.EventRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(coord *service.BookingCoordinator, rec *service.PaymentReconciler, bookings *repository.BookingRepo, events *repository.EventRepo) *BookingHandler {
	return &BookingHandler{Coordinator: coord, Reconciler: rec, Bookings: bookings, Events: events}
}

type holdReq struct {
	EventID      uint64   `json:"event_id" validate:"required,gt=0"`
	EventSeatIDs []uint64 `json:"event_seat_ids" validate:"required,min=1,max=10,dive,gt=0"`
}

type holdResp struct {
	BookingID        uint64 `json:"booking_id"`
	BookingReference string `json:"booking_reference"`
	Status           string `json:"status"`
	TotalAmountCents uint64 `json:"total_amount_cents"`
	ExpiresAt        string `json:"expires_at"`
}

// Hold handles POST /v1/bookings.  It places a PENDING hold on the
// requested seats.  Contended seats come back as 409 so clients can pick
// different ones and retry.
func (h *BookingHandler) Hold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.Events.GetByID(ctx, req.EventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	booking, err := h.Coordinator.HoldSeats(ctx, userID, req.EventID, req.EventSeatIDs)
	if err != nil {
		if errors.Is(err, repository.ErrSeatConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "one or more seats are no longer available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}
	return c.JSON(http.StatusCreated, holdResp{
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		Status:           booking.Status,
		TotalAmountCents: booking.TotalAmountCents,
		ExpiresAt:        booking.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Get handles GET /v1/bookings/:id with event and seat details.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	detail, err := h.Bookings.GetDetailForUser(c.Request().Context(), bookingID, userID)
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, detail)
}

// List handles GET /v1/my-bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	details, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": details})
}

// Cancel handles DELETE /v1/bookings/:id.  Confirmed bookings are refunded
// through the gateway before any local state changes; a gateway refusal
// surfaces as 502 and leaves the booking intact for a retry.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	refundID, err := h.Reconciler.CancelBooking(c.Request().Context(), bookingID, userID)
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking cannot be cancelled"})
	case err != nil:
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "cancellation failed, please retry"})
	}

	resp := echo.Map{"status": "CANCELLED", "refunded": refundID != ""}
	if refundID != "" {
		resp["refund_id"] = refundID
	}
	return c.JSON(http.StatusOK, resp)
}
