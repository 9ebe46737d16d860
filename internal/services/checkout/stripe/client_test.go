package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/status"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{SecretKey: "sk_test_123", BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "4550", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "Dhaka to Sylhet", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "b1", r.PostForm.Get("metadata[bookingId]"))
		assert.Equal(t, "http://client/payment-success?session_id={CHECKOUT_SESSION_ID}", r.PostForm.Get("success_url"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1","status":"open"}`))
	})

	out, err := c.CreateCheckoutSession(context.Background(), &checkout.SessionRequest{
		LineItem: checkout.LineItem{
			Name:      "Dhaka to Sylhet",
			UnitPrice: decimal.RequireFromString("45.50"),
			Quantity:  2,
			Currency:  "usd",
		},
		Metadata:   map[string]string{checkout.MetaBookingID: "b1"},
		SuccessURL: "http://client/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://client/payment-cancelled",
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", out.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", out.URL)
}

func TestClient_RetrieveSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":             "cs_test_1",
			"status":         "complete",
			"payment_status": "paid",
			"payment_intent": "pi_123",
			"amount_total":   9100,
			"currency":       "usd",
			"metadata":       map[string]string{"bookingId": "b1", "ticketId": "t1"},
		})
	})

	s, err := c.RetrieveSession(context.Background(), "cs_test_1")

	require.NoError(t, err)
	assert.True(t, s.Completed())
	assert.Equal(t, "pi_123", s.PaymentIntentID)
	assert.Equal(t, int64(9100), s.AmountTotal)
	assert.Equal(t, "b1", s.Metadata[checkout.MetaBookingID])
}

func TestClient_RetrieveSession_OpenSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_2","status":"open","payment_intent":null}`))
	})

	s, err := c.RetrieveSession(context.Background(), "cs_test_2")

	require.NoError(t, err)
	assert.False(t, s.Completed())
	assert.Empty(t, s.PaymentIntentID)
	assert.NotNil(t, s.Metadata)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session: cs_missing"}}`))
	})

	_, err := c.RetrieveSession(context.Background(), "cs_missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrUpstream)
	assert.Contains(t, err.Error(), "No such checkout.session")
	assert.Equal(t, uint32(0), c.Breaker().Counts().TotalFailures)
}

func TestClient_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for range 10 {
		_, err := c.RetrieveSession(context.Background(), "cs_test_1")
		assert.ErrorIs(t, err, status.ErrUpstream)
	}

	_, err := c.RetrieveSession(context.Background(), "cs_test_1")

	assert.ErrorIs(t, err, status.ErrUpstream)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(10), calls.Load())
}

func TestClient_RequiresSessionID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.RetrieveSession(context.Background(), "")

	assert.ErrorIs(t, err, status.ErrValidation)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
