package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
)

// EventHandler serves the unauthenticated browse endpoints: event listing
// and per-event seat availability.
type EventHandler struct {
	Events   *repository.EventRepo
	SeatRepo *repository.EventSeatRepo
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(events *repository.EventRepo, seats *repository.EventSeatRepo) *EventHandler {
	return &EventHandler{Events: events, SeatRepo: seats}
}

type eventView struct {
	ID       uint64 `json:"id"`
	Title    string `json:"title"`
	Venue    string `json:"venue"`
	StartsAt string `json:"starts_at"`
}

func toEventView(e model.Event) eventView {
	return eventView{
		ID:       e.ID,
		Title:    e.Title,
		Venue:    e.Venue,
		StartsAt: e.StartsAt.UTC().Format(time.RFC3339),
	}
}

// List handles GET /v1/events.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, toEventView(e))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": views})
}

// Get handles GET /v1/events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	e, err := h.Events.GetByID(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toEventView(*e))
}

// Seats handles GET /v1/events/:id/seats.  Status reflects the durable
// store only; seats under a live Redis hold still show AVAILABLE until the
// PENDING booking lands.
func (h *EventHandler) Seats(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seats, err := h.SeatRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}
