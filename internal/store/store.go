// Package store defines the persistence gateway used by the services.
//
// Records live in five collections (tickets, bookings, users, transactions,
// feedback). Emails are the informal join key between them; every join
// column is indexed by the schema migrations.
package store

import (
	"context"

	"ticket-marketplace/models"
)

type (
	// TicketQuery selects tickets. Zero values mean "no constraint".
	TicketQuery struct {
		VisibleOnly bool
		Advertised  *bool
		VendorEmail string
		// Sort is a PocketBase style sort expression, e.g. "-created".
		Sort  string
		Limit int
	}

	BookingQuery struct {
		BuyerEmail  string
		VendorEmail string
		Status      models.BookingStatus
	}

	// UpdateResult mirrors the document store's updateMany acknowledgement.
	UpdateResult struct {
		MatchedCount  int `json:"matchedCount"`
		ModifiedCount int `json:"modifiedCount"`
	}
)

type TicketRepository interface {
	Insert(ctx context.Context, t *models.Ticket) error
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	Find(ctx context.Context, q TicketQuery) ([]*models.Ticket, error)
	Count(ctx context.Context, q TicketQuery) (int, error)
	Update(ctx context.Context, t *models.Ticket) error
	// Delete returns the number of removed records (0 or 1).
	Delete(ctx context.Context, id string) (int, error)
	// HideByVendor marks every ticket of the vendor hidden and rejected.
	HideByVendor(ctx context.Context, vendorEmail string) (UpdateResult, error)
	// DecrementQuantity lowers the stock by n, never below zero, and
	// returns the remaining quantity.
	DecrementQuantity(ctx context.Context, id string, n int) (int, error)
}

type BookingRepository interface {
	Insert(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Find(ctx context.Context, q BookingQuery) ([]*models.Booking, error)
	Update(ctx context.Context, b *models.Booking) error
}

type UserRepository interface {
	// Insert fails with status.ErrDuplicateEmail when the email is taken.
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

type TransactionRepository interface {
	Insert(ctx context.Context, t *models.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	// FindByBuyer returns the buyer's ledger, newest payment first.
	FindByBuyer(ctx context.Context, email string) ([]*models.Transaction, error)
}

type FeedbackRepository interface {
	Insert(ctx context.Context, f *models.Feedback) error
	List(ctx context.Context) ([]*models.Feedback, error)
}

// Store groups the repositories. Lookups of unknown ids return
// status.ErrNotFound.
type Store interface {
	Tickets() TicketRepository
	Bookings() BookingRepository
	Users() UserRepository
	Transactions() TransactionRepository
	Feedback() FeedbackRepository

	// RunInTransaction runs fn against a transactional view of the store.
	// Every write made through tx is committed when fn returns nil and
	// discarded otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Ping checks that the underlying database answers.
	Ping(ctx context.Context) error
}
