package stripe

import (
	"encoding/json"
	"fmt"

	"ticket-marketplace/internal/services/checkout"

	stripesdk "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	SignatureHeader = "Stripe-Signature"

	EventCheckoutCompleted = string(stripesdk.EventTypeCheckoutSessionCompleted)
)

// Event is a verified webhook delivery.
type Event struct {
	ID     string
	Type   string
	object json.RawMessage
}

// Session decodes the event object as a checkout session.
func (e *Event) Session() (*checkout.Session, error) {
	var s stripesdk.CheckoutSession
	if err := json.Unmarshal(e.object, &s); err != nil {
		return nil, fmt.Errorf("stripe: decode event object: %w", err)
	}
	return toSession(&s), nil
}

// ConstructEvent checks the Stripe-Signature header of payload against
// secret and decodes the event. Signatures older than the SDK's default
// tolerance are refused. Deliveries pinned to another API version are
// accepted since only the session id and status are read.
func ConstructEvent(payload []byte, header, secret string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.object = ev.Data.Raw
	}
	return out, nil
}
