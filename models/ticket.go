package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketApproved TicketStatus = "approved"
	TicketRejected TicketStatus = "rejected"
)

// MaxAdvertised is the number of tickets that may carry the advertised
// flag at the same time.
const MaxAdvertised = 6

type Ticket struct {
	ID              string          `json:"_id"`
	Title           string          `json:"title"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	TransportType   string          `json:"transportType"`
	Perks           []string        `json:"perks"`
	Image           string          `json:"image"`
	VendorName      string          `json:"vendorName"`
	VendorEmail     string          `json:"vendorEmail"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Departure       time.Time       `json:"departure"`
	Status          TicketStatus    `json:"status"`
	IsHiddenByAdmin bool            `json:"isHiddenByAdmin"`
	Advertised      bool            `json:"advertised"`
	Created         time.Time       `json:"created"`
	Updated         time.Time       `json:"updated"`
}

// Visible reports whether the ticket passes the public visibility filter.
func (t *Ticket) Visible() bool {
	return t.Status == TicketApproved && !t.IsHiddenByAdmin
}

// TicketInput carries the vendor-editable fields of a ticket. Moderation
// fields are deliberately absent: status is always decided server-side.
type TicketInput struct {
	Title         string          `json:"title"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	TransportType string          `json:"transportType"`
	Perks         []string        `json:"perks"`
	Image         string          `json:"image"`
	VendorName    string          `json:"vendorName"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Departure     time.Time       `json:"departure"`
	Status        TicketStatus    `json:"status,omitempty"` // ignored
}

// TicketPatch is a partial TicketInput. Nil fields keep the stored value.
type TicketPatch struct {
	Title         *string          `json:"title"`
	From          *string          `json:"from"`
	To            *string          `json:"to"`
	TransportType *string          `json:"transportType"`
	Perks         *[]string        `json:"perks"`
	Image         *string          `json:"image"`
	VendorName    *string          `json:"vendorName"`
	Price         *decimal.Decimal `json:"price"`
	Quantity      *int             `json:"quantity"`
	Departure     *time.Time       `json:"departure"`
}

// ApplyTo copies the supplied fields onto t.
func (p *TicketPatch) ApplyTo(t *Ticket) {
	setIf(&t.Title, p.Title)
	setIf(&t.From, p.From)
	setIf(&t.To, p.To)
	setIf(&t.TransportType, p.TransportType)
	setIf(&t.Perks, p.Perks)
	setIf(&t.Image, p.Image)
	setIf(&t.VendorName, p.VendorName)
	setIf(&t.Price, p.Price)
	setIf(&t.Quantity, p.Quantity)
	setIf(&t.Departure, p.Departure)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
