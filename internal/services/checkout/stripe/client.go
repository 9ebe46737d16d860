// Package stripe talks to the Stripe Checkout REST API (or any server that
// speaks the same form-encoded protocol). Requests go through resty and the
// circuit breaker; parameter encoding, response types and webhook
// verification come from stripe-go.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/utils"

	"github.com/go-resty/resty/v2"
	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/form"
)

const DefaultBaseURL = "https://api.stripe.com"

type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type Client struct {
	rc      *resty.Client
	breaker *utils.CircuitBreaker
}

var _ checkout.Provider = (*Client)(nil)

// apiError is the error envelope of the REST API.
type apiError struct {
	Error *stripesdk.Error `json:"error"`
}

func (e *apiError) message() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Msg
}

func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.SecretKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		rc:      rc,
		breaker: utils.NewCircuitBreaker("stripe", utils.WithMinRequests(10), utils.WithTimeout(30*time.Second)),
	}, nil
}

func (c *Client) Name() checkout.ProviderName {
	return checkout.ProviderStripe
}

// Breaker exposes the circuit breaker so callers can observe its state.
func (c *Client) Breaker() *utils.CircuitBreaker {
	return c.breaker
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req *checkout.SessionRequest) (*checkout.CreatedSession, error) {
	body := sessionForm(req)

	var out stripesdk.CheckoutSession
	if err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetFormDataFromValues(body).SetResult(&out).Post("/v1/checkout/sessions")
	}); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &checkout.CreatedSession{ID: out.ID, URL: out.URL}, nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", status.ErrValidation)
	}

	var out stripesdk.CheckoutSession
	if err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", sessionID).SetResult(&out).Get("/v1/checkout/sessions/{id}")
	}); err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}

	return toSession(&out), nil
}

// do runs a request through the circuit breaker. Only transport failures
// and 5xx answers count against the breaker.
func (c *Client) do(ctx context.Context, send func(r *resty.Request) (*resty.Response, error)) error {
	var apiErr error

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var e apiError
		resp, err := send(c.rc.R().SetContext(ctx).SetError(&e))
		if err != nil {
			return err
		}
		if !resp.IsError() {
			return nil
		}

		apiErr = fmt.Errorf("%w: status %d: %s", status.ErrUpstream, resp.StatusCode(), e.message())
		if resp.StatusCode() >= http.StatusInternalServerError {
			return apiErr
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, status.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: %v", status.ErrUpstream, err)
	}
	return apiErr
}

// sessionForm encodes the request with the SDK's parameter types so the
// nested line item keys match what the API expects.
func sessionForm(req *checkout.SessionRequest) url.Values {
	item := req.LineItem

	product := &stripesdk.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripesdk.String(item.Name),
	}
	if item.Image != "" {
		product.Images = stripesdk.StringSlice([]string{item.Image})
	}

	params := &stripesdk.CheckoutSessionParams{
		Mode:       stripesdk.String(string(stripesdk.CheckoutSessionModePayment)),
		SuccessURL: stripesdk.String(req.SuccessURL),
		CancelURL:  stripesdk.String(req.CancelURL),
		LineItems: []*stripesdk.CheckoutSessionLineItemParams{{
			Quantity: stripesdk.Int64(int64(item.Quantity)),
			PriceData: &stripesdk.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripesdk.String(item.Currency),
				UnitAmount:  stripesdk.Int64(checkout.MinorUnits(item.UnitPrice)),
				ProductData: product,
			},
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripesdk.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	values := &form.Values{}
	form.AppendTo(values, params)
	return values.ToValues()
}

func toSession(s *stripesdk.CheckoutSession) *checkout.Session {
	out := &checkout.Session{
		ID:            s.ID,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
