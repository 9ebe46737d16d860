package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingAccepted BookingStatus = "accepted"
	BookingRejected BookingStatus = "rejected"
	BookingPaid     BookingStatus = "paid"
)

type Booking struct {
	ID            string          `json:"_id"`
	TicketID      string          `json:"ticketId"`
	TicketTitle   string          `json:"ticketTitle"`
	BuyerName     string          `json:"buyerName"`
	BuyerEmail    string          `json:"buyerEmail"`
	VendorEmail   string          `json:"vendorEmail"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Status        BookingStatus   `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	Created       time.Time       `json:"created"`
}

// CanTransitionTo reports whether the booking may move to next.
// Paid is terminal; a rejected booking can no longer be paid.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	switch b.Status {
	case BookingPaid:
		return false
	case BookingRejected:
		return next == BookingAccepted || next == BookingRejected
	}
	switch next {
	case BookingAccepted, BookingRejected, BookingPaid:
		return true
	}
	return false
}
