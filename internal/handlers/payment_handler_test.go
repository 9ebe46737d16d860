package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/services/checkout/stripe"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func (s *testServer) openCheckout(t *testing.T) string {
	t.Helper()
	ticketID := s.listTicket(t, "Bus", 5)

	rec, err := serve(t, s.bookings.CreateBooking, call{method: http.MethodPost, target: "/tickets-booking", body: map[string]any{"ticketId": ticketID, "quantity": 1}, email: buyerEmail})
	require.NoError(t, err)
	bookingID := decode[map[string]string](t, rec)["insertedId"]

	rec, err = serve(t, s.payments.CreateCheckoutSession, call{method: http.MethodPost, target: "/create-checkout-session", body: map[string]any{"bookingId": bookingID}, email: buyerEmail})
	require.NoError(t, err)
	return decode[map[string]string](t, rec)["sessionId"]
}

func webhookEvent(t *testing.T, h *PaymentHandler, payload, signature string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/checkout", strings.NewReader(payload))
	req.Header.Set(stripe.SignatureHeader, signature)

	rec := httptest.NewRecorder()
	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec
	return rec, h.Webhook(e)
}

func signed(payload, secret string, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func completedEvent(sessionID string) string {
	return `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"` + sessionID + `","status":"complete"}}}`
}

func TestWebhook(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()

	sessionID := s.openCheckout(t)

	t.Run("bad signature", func(t *testing.T) {
		payload := completedEvent(sessionID)
		_, err := webhookEvent(t, s.payments, payload, signed(payload, "wrong", now))
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("stale signature", func(t *testing.T) {
		payload := completedEvent(sessionID)
		_, err := webhookEvent(t, s.payments, payload, signed(payload, webhookSecret, now.Add(-time.Hour)))
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("other event types are acknowledged", func(t *testing.T) {
		payload := `{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`
		rec, err := webhookEvent(t, s.payments, payload, signed(payload, webhookSecret, now))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("incomplete session is ignored", func(t *testing.T) {
		payload := completedEvent(sessionID)
		rec, err := webhookEvent(t, s.payments, payload, signed(payload, webhookSecret, now))
		require.NoError(t, err)
		assert.Contains(t, rec.Body.String(), "ignored")
	})

	_, err := s.provider.Complete(sessionID)
	require.NoError(t, err)

	t.Run("completed session settles once", func(t *testing.T) {
		payload := completedEvent(sessionID)
		for _, want := range []string{services.MessageSettled, services.MessageAlreadyProcessed} {
			rec, err := webhookEvent(t, s.payments, payload, signed(payload, webhookSecret, now))
			require.NoError(t, err)
			assert.Contains(t, rec.Body.String(), want)
		}

		txns, err := s.store.Transactions().FindByBuyer(context.Background(), buyerEmail)
		require.NoError(t, err)
		assert.Len(t, txns, 1)
	})
}

func TestWebhook_NotConfigured(t *testing.T) {
	s := newTestServer(t)
	h := NewPaymentHandler(nil, s.users, "", nil)

	_, err := webhookEvent(t, h, "{}", "")
	requireStatus(t, err, http.StatusNotFound)
}

func TestCompleteSandboxSession(t *testing.T) {
	s := newTestServer(t)
	sessionID := s.openCheckout(t)

	rec, err := serve(t, s.payments.CompleteSandboxSession, call{method: http.MethodPost, target: "/dev/checkout-sessions/" + sessionID + "/complete", path: map[string]string{"id": sessionID}})
	require.NoError(t, err)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "complete", body["status"])
	assert.True(t, strings.HasPrefix(body["paymentIntentId"], "pi_test"))

	_, err = serve(t, s.payments.CompleteSandboxSession, call{method: http.MethodPost, target: "/dev/checkout-sessions/missing/complete", path: map[string]string{"id": "missing"}})
	requireStatus(t, err, http.StatusNotFound)

	_, err = serve(t, s.payments.PaymentSuccess, call{method: http.MethodPatch, target: "/payment-success", email: buyerEmail})
	requireStatus(t, err, http.StatusBadRequest)
}
