package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the ledger entry written once per settled payment.
// TransactionID holds the processor's payment-intent id and is unique.
type Transaction struct {
	ID            string          `json:"_id"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TicketTitle   string          `json:"ticketTitle"`
	TicketID      string          `json:"ticketId"`
	BookingID     string          `json:"bookingId"`
	BuyerEmail    string          `json:"buyerEmail"`
	PaymentDate   time.Time       `json:"paymentDate"`
}

type Feedback struct {
	ID      string    `json:"_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Message string    `json:"message"`
	Rating  int       `json:"rating"`
	Created time.Time `json:"created"`
}

// VendorOverview is the revenue rollup shown on the vendor dashboard.
type VendorOverview struct {
	TotalTicketsAdded int             `json:"totalTicketsAdded"`
	TotalTicketsSold  int             `json:"totalTicketsSold"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
}
