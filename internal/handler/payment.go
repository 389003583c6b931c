package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-booking/internal/logger"
	"github.com/iliyamo/event-ticket-booking/internal/metrics"
	"github.com/iliyamo/event-ticket-booking/internal/model"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/service"
)

// signatureHeader carries the gateway's HMAC over the raw webhook body.
const signatureHeader = "X-Razorpay-Signature"

// paymentService is the slice of the reconciler the payment endpoints
// need.  Implemented by service.PaymentReconciler.
type paymentService interface {
	CreatePayment(ctx context.Context, bookingID, userID uint64) (*model.Payment, error)
	OnPaymentCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error
	OnPaymentFailed(ctx context.Context, gatewayOrderID string) error
}

// PaymentHandler exposes payment creation and the gateway webhook.
type PaymentHandler struct {
	Reconciler    paymentService
	WebhookSecret string
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(rec paymentService, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{Reconciler: rec, WebhookSecret: webhookSecret}
}

type createPaymentReq struct {
	BookingID uint64 `json:"booking_id" validate:"required,gt=0"`
}

type createPaymentResp struct {
	PaymentID      uint64 `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	AmountCents    uint64 `json:"amount_cents"`
	Status         string `json:"status"`
}

// Create handles POST /v1/payments.  It opens a gateway order for a
// PENDING booking so the client can start the checkout flow.
func (h *PaymentHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := h.Reconciler.CreatePayment(c.Request().Context(), req.BookingID, userID)
	switch {
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking is not awaiting payment"})
	case err != nil:
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}
	return c.JSON(http.StatusCreated, createPaymentResp{
		PaymentID:      p.ID,
		GatewayOrderID: p.GatewayOrderID,
		AmountCents:    p.AmountCents,
		Status:         p.Status,
	})
}

// webhookEnvelope is the subset of the gateway's webhook payload this
// service consumes.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Webhook handles POST /v1/payments/webhook.  The HMAC is verified over
// the exact raw bytes before any parsing.  Every delivery is acknowledged
// with 200 no matter the outcome, so the gateway never enters a retry
// storm: unverifiable signatures and internal failures are counted and
// logged, not surfaced to the caller.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	sig := c.Request().Header.Get(signatureHeader)
	if !payment.VerifyWebhookSignature(body, sig, h.WebhookSecret) {
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		logger.Warn("webhook signature mismatch, not processing", zap.Int("body_bytes", len(body)))
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		logger.Warn("webhook payload unparseable", zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}
	orderID := env.Payload.Payment.Entity.OrderID
	paymentID := env.Payload.Payment.Entity.ID
	ctx := c.Request().Context()

	switch env.Event {
	case "payment.captured":
		err = h.Reconciler.OnPaymentCaptured(ctx, orderID, paymentID)
	case "payment.failed":
		err = h.Reconciler.OnPaymentFailed(ctx, orderID)
	default:
		// Unsubscribed event types are acknowledged and dropped.
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
	}

	switch {
	case errors.Is(err, service.ErrDuplicateDelivery):
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	case errors.Is(err, repository.ErrPaymentNotFound):
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		logger.Warn("webhook for unknown order",
			zap.String("event", env.Event), zap.String("gateway_order_id", orderID))
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	case err != nil:
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		logger.Error("webhook processing failed",
			zap.String("event", env.Event), zap.String("gateway_order_id", orderID), zap.Error(err))
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}

	metrics.WebhookEvents.WithLabelValues("processed").Inc()
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
