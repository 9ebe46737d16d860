package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/services/checkout/sandbox"
	"ticket-marketplace/internal/services/checkout/stripe"
	"ticket-marketplace/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// maxWebhookBody bounds the signed payload read from the processor.
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	settlement    *services.SettlementService
	users         CallerResolver
	webhookSecret string
	sandbox       *sandbox.Provider
}

// NewPaymentHandler builds the checkout routes. webhookSecret may be empty
// when webhooks are not configured; sb is only set in sandbox mode.
func NewPaymentHandler(settlement *services.SettlementService, users CallerResolver, webhookSecret string, sb *sandbox.Provider) *PaymentHandler {
	return &PaymentHandler{
		settlement:    settlement,
		users:         users,
		webhookSecret: webhookSecret,
		sandbox:       sb,
	}
}

// CreateCheckoutSession - POST /create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	var req services.CheckoutRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	created, err := h.settlement.BeginCheckout(e.Request.Context(), caller, req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, created)
}

// PaymentSuccess - PATCH /payment-success?session_id=
func (h *PaymentHandler) PaymentSuccess(e *core.RequestEvent) error {
	sessionID := e.Request.URL.Query().Get("session_id")
	if sessionID == "" {
		return apis.NewBadRequestError("session_id is required", nil)
	}

	res, err := h.settlement.ConfirmSettlement(e.Request.Context(), sessionID)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// Webhook - POST /webhooks/checkout
//
// Verifies the processor signature and settles completed sessions.
// Deliveries that can never succeed are acknowledged so the processor
// stops retrying them; transient failures return 5xx.
func (h *PaymentHandler) Webhook(e *core.RequestEvent) error {
	if h.webhookSecret == "" {
		return apis.NewNotFoundError("webhooks are not configured", nil)
	}

	payload, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Failed to read body", err)
	}

	event, err := stripe.ConstructEvent(payload, e.Request.Header.Get(stripe.SignatureHeader), h.webhookSecret)
	if err != nil {
		slog.Warn("webhook rejected", "error", err)
		return apis.NewBadRequestError("invalid signature", nil)
	}

	if event.Type != stripe.EventCheckoutCompleted {
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	session, err := event.Session()
	if err != nil {
		return apis.NewBadRequestError("invalid event object", err)
	}

	res, err := h.settlement.ConfirmSettlement(e.Request.Context(), session.ID)
	switch {
	case err == nil:
		return e.JSON(http.StatusOK, map[string]any{"received": true, "result": res})
	case errors.Is(err, status.ErrValidation),
		errors.Is(err, status.ErrPaymentIncomplete),
		errors.Is(err, status.ErrBookingNotFound),
		errors.Is(err, status.ErrBookingPaid):
		slog.Warn("webhook event ignored", "event_id", event.ID, "session_id", session.ID, "reason", err)
		return e.JSON(http.StatusOK, map[string]any{"received": true, "ignored": err.Error()})
	default:
		return apiError(err)
	}
}

// CompleteSandboxSession - POST /dev/checkout-sessions/{id}/complete
//
// Plays the buyer finishing the hosted checkout in sandbox mode.
func (h *PaymentHandler) CompleteSandboxSession(e *core.RequestEvent) error {
	if h.sandbox == nil {
		return apis.NewNotFoundError("", nil)
	}

	s, err := h.sandbox.Complete(e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"sessionId":       s.ID,
		"status":          s.Status,
		"paymentIntentId": s.PaymentIntentID,
	})
}

// SandboxCheckoutPage - GET /dev/checkout/{id}
//
// Stands in for the hosted payment page: completes the session and
// redirects to the storefront success URL.
func (h *PaymentHandler) SandboxCheckoutPage(e *core.RequestEvent) error {
	if h.sandbox == nil {
		return apis.NewNotFoundError("", nil)
	}

	id := e.Request.PathValue("id")
	req, ok := h.sandbox.Request(id)
	if !ok {
		return apis.NewNotFoundError("Checkout session not found", nil)
	}
	if _, err := h.sandbox.Complete(id); err != nil {
		return apiError(err)
	}

	return e.Redirect(http.StatusSeeOther, successURL(req, id))
}

func successURL(req *checkout.SessionRequest, sessionID string) string {
	return strings.ReplaceAll(req.SuccessURL, "{CHECKOUT_SESSION_ID}", sessionID)
}
