package services

import (
	"context"
	"strings"

	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

type FeedbackRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

type ReportService struct {
	store store.Store
}

func NewReportService(st store.Store) *ReportService {
	return &ReportService{store: st}
}

// VendorOverview sums the vendor's listings and paid bookings.
func (s *ReportService) VendorOverview(ctx context.Context, email string) (*models.VendorOverview, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("Email is required")
	}

	added, err := s.store.Tickets().Count(ctx, store.TicketQuery{VendorEmail: email})
	if err != nil {
		return nil, err
	}

	paid, err := s.store.Bookings().Find(ctx, store.BookingQuery{VendorEmail: email, Status: models.BookingPaid})
	if err != nil {
		return nil, err
	}

	revenue := decimal.Zero
	for _, b := range paid {
		revenue = revenue.Add(b.TotalPrice)
	}

	return &models.VendorOverview{
		TotalTicketsAdded: added,
		TotalTicketsSold:  len(paid),
		TotalRevenue:      revenue,
	}, nil
}

// TransactionsByBuyer returns the buyer's ledger, newest first.
func (s *ReportService) TransactionsByBuyer(ctx context.Context, email string) ([]*models.Transaction, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("Email is required")
	}
	return s.store.Transactions().FindByBuyer(ctx, email)
}

func (s *ReportService) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*models.Feedback, error) {
	f := &models.Feedback{
		Name:    strings.TrimSpace(req.Name),
		Email:   normalizeEmail(req.Email),
		Message: strings.TrimSpace(req.Message),
		Rating:  req.Rating,
	}
	if err := invalidFields(validation.ValidateStruct(f,
		validation.Field(&f.Email, is.EmailFormat),
		validation.Field(&f.Message, validation.Required),
		validation.Field(&f.Rating, validation.Min(0), validation.Max(5)),
	)); err != nil {
		return nil, err
	}
	if err := s.store.Feedback().Insert(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *ReportService) ListFeedback(ctx context.Context) ([]*models.Feedback, error) {
	return s.store.Feedback().List(ctx)
}
