// Package sandbox is an in-memory checkout processor for development and
// tests. Sessions start "open" and become "complete" through Complete.
package sandbox

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/utils"
)

type Provider struct {
	// PaymentPage is the base of the fake hosted checkout page.
	PaymentPage string

	mu       sync.Mutex
	sessions map[string]*checkout.Session
	requests map[string]*checkout.SessionRequest
}

var _ checkout.Provider = (*Provider)(nil)

func New(paymentPage string) *Provider {
	return &Provider{
		PaymentPage: paymentPage,
		sessions:    make(map[string]*checkout.Session),
		requests:    make(map[string]*checkout.SessionRequest),
	}
}

func (p *Provider) Name() checkout.ProviderName {
	return checkout.ProviderSandbox
}

func (p *Provider) CreateCheckoutSession(_ context.Context, req *checkout.SessionRequest) (*checkout.CreatedSession, error) {
	if req.LineItem.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", status.ErrValidation)
	}

	id, err := utils.PrefixedID("cs_test", 12)
	if err != nil {
		return nil, err
	}

	amount := checkout.MinorUnits(req.LineItem.UnitPrice) * int64(req.LineItem.Quantity)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions[id] = &checkout.Session{
		ID:          id,
		Status:      "open",
		AmountTotal: amount,
		Currency:    req.LineItem.Currency,
		Metadata:    maps.Clone(req.Metadata),
	}
	p.requests[id] = req

	return &checkout.CreatedSession{
		ID:  id,
		URL: p.PaymentPage + "/" + id,
	}, nil
}

func (p *Provider) RetrieveSession(_ context.Context, sessionID string) (*checkout.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no such checkout session %q", status.ErrUpstream, sessionID)
	}

	out := *s
	out.Metadata = maps.Clone(s.Metadata)
	return &out, nil
}

// Complete marks the session paid and assigns a payment intent id, as the
// processor does when the buyer finishes the hosted checkout. Completing
// twice keeps the first payment intent.
func (p *Provider) Complete(sessionID string) (*checkout.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: no such checkout session %q", status.ErrNotFound, sessionID)
	}

	if s.PaymentIntentID == "" {
		pi, err := utils.PrefixedID("pi_test", 12)
		if err != nil {
			return nil, err
		}
		s.PaymentIntentID = pi
	}
	s.Status = checkout.SessionStatusComplete
	s.PaymentStatus = "paid"

	out := *s
	return &out, nil
}

// Request returns the request a session was created from.
func (p *Provider) Request(sessionID string) (*checkout.SessionRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[sessionID]
	return req, ok
}
