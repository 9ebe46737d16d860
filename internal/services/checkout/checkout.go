// Package checkout defines the payment processor contract used by the
// settlement flow. Concrete processors live in sub-packages.
package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

type ProviderName string

const (
	ProviderStripe  ProviderName = "stripe"
	ProviderSandbox ProviderName = "sandbox"
)

// SessionStatusComplete is the only status that allows settlement.
const SessionStatusComplete = "complete"

// Metadata keys carried on every checkout session.
const (
	MetaTicketID    = "ticketId"
	MetaBookingID   = "bookingId"
	MetaTicketTitle = "ticketTitle"
	MetaBuyerEmail  = "buyerEmail"
	MetaBuyerImage  = "buyerImage"
)

type (
	// LineItem is the single priced item of a checkout.
	LineItem struct {
		Name      string
		Image     string
		UnitPrice decimal.Decimal
		Quantity  int
		Currency  string
	}

	SessionRequest struct {
		LineItem      LineItem
		CustomerEmail string
		Metadata      map[string]string
		SuccessURL    string
		CancelURL     string
	}

	CreatedSession struct {
		ID  string `json:"sessionId"`
		URL string `json:"url"`
	}

	// Session is the processor's view of a checkout. AmountTotal is in the
	// currency's minor unit.
	Session struct {
		ID              string
		Status          string
		PaymentStatus   string
		PaymentIntentID string
		AmountTotal     int64
		Currency        string
		Metadata        map[string]string
	}
)

// Provider is implemented by every payment processor adapter.
type Provider interface {
	Name() ProviderName

	CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*CreatedSession, error)

	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// Completed reports whether the session may be settled.
func (s *Session) Completed() bool {
	return s.Status == SessionStatusComplete && s.PaymentIntentID != ""
}

// MinorUnits converts a decimal amount to the processor's integer minor
// unit, e.g. 12.34 -> 1234.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
