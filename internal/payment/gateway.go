// Package payment talks to the external payment gateway.  The gateway is a
// black box with three touch points: order creation before checkout, an
// asynchronous webhook (verified in signature.go), and refunds.  Amounts
// are always minor currency units.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrAlreadyRefunded is returned by Refund when the gateway reports the
// payment as fully refunded.  Callers treat it as success so a retried
// cancellation converges instead of failing forever.
var ErrAlreadyRefunded = errors.New("payment already refunded")

// Order is the gateway's representation of a payment order.  Its ID is
// echoed back in webhook deliveries as order_id.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Refund is the gateway's receipt for a refund request.
type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// Gateway is the payment-provider surface the service depends on.  The
// reconciler takes this interface so tests can substitute a mock.
type Gateway interface {
	CreateOrder(ctx context.Context, amountCents int64, receipt string) (*Order, error)
	Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (*Refund, error)
}

// Client implements Gateway over the provider's REST API with basic auth.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
}

// NewClient builds a gateway client.  The base URL can be overridden with
// PAYMENT_BASE_URL (used by local gateway simulators).
func NewClient(keyID, secret string) *Client {
	base := os.Getenv("PAYMENT_BASE_URL")
	if base == "" {
		base = "https://api.razorpay.com/v1"
	}
	return &Client{
		baseURL: strings.TrimSuffix(base, "/"),
		keyID:   keyID,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// gatewayError mirrors the provider's error envelope.
type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var ge gatewayError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Description != "" {
			if strings.Contains(strings.ToLower(ge.Error.Description), "fully refunded") {
				return ErrAlreadyRefunded
			}
			return fmt.Errorf("gateway %s %s: %s (%s)", method, path, ge.Error.Description, ge.Error.Code)
		}
		return fmt.Errorf("gateway %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gateway response: %w", err)
		}
	}
	return nil
}

// CreateOrder opens a payment order for the given amount.  The receipt
// string correlates the order to the booking in the gateway dashboard.
func (c *Client) CreateOrder(ctx context.Context, amountCents int64, receipt string) (*Order, error) {
	req := map[string]interface{}{
		"amount":          amountCents,
		"currency":        "INR",
		"receipt":         receipt,
		"payment_capture": 1,
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Refund requests a full refund against a captured payment.  The provider
// treats repeated refunds of the same payment as idempotent; an "already
// refunded" rejection surfaces as ErrAlreadyRefunded.
func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) (*Refund, error) {
	req := map[string]interface{}{"amount": amountCents}
	var refund Refund
	err := c.do(ctx, http.MethodPost, "/payments/"+gatewayPaymentID+"/refund", req, &refund)
	if err != nil {
		return nil, err
	}
	return &refund, nil
}
