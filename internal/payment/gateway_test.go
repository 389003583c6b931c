package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_test", user)
		assert.Equal(t, "secret_test", pass)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(2000), body["amount"])
		assert.Equal(t, "booking_42", body["receipt"])

		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: 2000, Currency: "INR"})
	}))
	defer srv.Close()

	t.Setenv("PAYMENT_BASE_URL", srv.URL)
	client := NewClient("key_test", "secret_test")

	order, err := client.CreateOrder(context.Background(), 2000, "booking_42")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(2000), order.Amount)
}

func TestClient_Refund(t *testing.T) {
	t.Run("successful refund", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/payments/pay_1/refund", r.URL.Path)
			_ = json.NewEncoder(w).Encode(Refund{ID: "rfnd_1", Amount: 2000, Status: "processed"})
		}))
		defer srv.Close()
		t.Setenv("PAYMENT_BASE_URL", srv.URL)

		refund, err := NewClient("k", "s").Refund(context.Background(), "pay_1", 2000)
		require.NoError(t, err)
		assert.Equal(t, "rfnd_1", refund.ID)
	})

	t.Run("already refunded maps to sentinel", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The payment has been fully refunded already"}}`))
		}))
		defer srv.Close()
		t.Setenv("PAYMENT_BASE_URL", srv.URL)

		_, err := NewClient("k", "s").Refund(context.Background(), "pay_1", 2000)
		assert.ErrorIs(t, err, ErrAlreadyRefunded)
	})

	t.Run("other gateway errors surface description", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"upstream unavailable"}}`))
		}))
		defer srv.Close()
		t.Setenv("PAYMENT_BASE_URL", srv.URL)

		_, err := NewClient("k", "s").Refund(context.Background(), "pay_1", 2000)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream unavailable")
	})
}
