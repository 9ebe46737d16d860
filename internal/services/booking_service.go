package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"

	"github.com/shopspring/decimal"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type CreateBookingRequest struct {
	TicketID  string `json:"ticketId"`
	Quantity  int    `json:"quantity"`
	BuyerName string `json:"buyerName"`
}

type BookingService struct {
	store store.Store
	now   func() time.Time
	deps
}

func NewBookingService(st store.Store, monitor *monitoring.Monitor, notifier notify.Notifier) *BookingService {
	return &BookingService{store: st, now: time.Now, deps: newDeps(monitor, notifier)}
}

// CreateBooking requests quantity seats of a visible ticket for the caller.
// The vendor, title and total price are taken from the ticket, never from
// the client.
func (s *BookingService) CreateBooking(ctx context.Context, caller Caller, req CreateBookingRequest) (*models.Booking, error) {
	b, err := s.createBooking(ctx, caller, req)
	s.monitor.TrackBooking("create", err)
	return b, err
}

func (s *BookingService) createBooking(ctx context.Context, caller Caller, req CreateBookingRequest) (*models.Booking, error) {
	if caller.Email == "" {
		return nil, status.ErrUnauthorized
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return nil, invalid("ticketId is required")
	}
	if req.Quantity < 1 {
		return nil, invalid("quantity must be at least 1")
	}

	t, err := s.store.Tickets().FindByID(ctx, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", req.TicketID, err)
	}
	if !t.Visible() {
		return nil, fmt.Errorf("ticket %s: %w", req.TicketID, status.ErrNotFound)
	}
	if !t.Departure.IsZero() && t.Departure.Before(s.now()) {
		return nil, invalid("ticket %s has already departed", t.ID)
	}
	if req.Quantity > t.Quantity {
		return nil, fmt.Errorf("%w: requested %d, %d left", status.ErrInsufficientStock, req.Quantity, t.Quantity)
	}

	b := &models.Booking{
		TicketID:    t.ID,
		TicketTitle: t.Title,
		BuyerName:   req.BuyerName,
		BuyerEmail:  caller.Email,
		VendorEmail: t.VendorEmail,
		Quantity:    req.Quantity,
		TotalPrice:  t.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2),
		Status:      models.BookingPending,
	}
	if err := s.store.Bookings().Insert(ctx, b); err != nil {
		return nil, err
	}

	slog.Info("booking requested",
		"booking_id", b.ID,
		"ticket_id", b.TicketID,
		"buyer", b.BuyerEmail,
		"quantity", b.Quantity,
	)
	s.notify(ctx, b.VendorEmail, notify.Event{
		Type: notify.EventBookingRequested,
		Data: map[string]any{"bookingId": b.ID, "ticketId": b.TicketID, "quantity": b.Quantity},
	})
	return b, nil
}

// VendorDecide accepts or rejects a booking on behalf of its vendor. Paid
// bookings are final.
func (s *BookingService) VendorDecide(ctx context.Context, caller Caller, bookingID string, decision Decision) (store.UpdateResult, error) {
	var (
		res  store.UpdateResult
		next models.BookingStatus
	)

	switch decision {
	case DecisionAccept:
		next = models.BookingAccepted
	case DecisionReject:
		next = models.BookingRejected
	default:
		return res, invalid("unknown decision %q", decision)
	}

	var b *models.Booking
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		b, err = tx.Bookings().FindByID(ctx, bookingID)
		if errors.Is(err, status.ErrNotFound) {
			return fmt.Errorf("%w: %s", status.ErrBookingNotFound, bookingID)
		}
		if err != nil {
			return err
		}
		if !caller.Owns(b.VendorEmail) {
			return fmt.Errorf("%w: booking %s belongs to another vendor", status.ErrForbidden, bookingID)
		}
		if b.Status == models.BookingPaid {
			return fmt.Errorf("%w: %s", status.ErrBookingPaid, bookingID)
		}
		res.MatchedCount = 1

		if b.Status == next {
			return nil
		}
		if !b.CanTransitionTo(next) {
			return invalid("booking %s cannot move from %s to %s", bookingID, b.Status, next)
		}

		b.Status = next
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		res.ModifiedCount = 1
		return nil
	})
	s.monitor.TrackBooking(string(decision), err)
	if err != nil {
		return res, err
	}

	if res.ModifiedCount > 0 {
		s.notify(ctx, b.BuyerEmail, notify.Event{
			Type: notify.EventBookingDecided,
			Data: map[string]any{"bookingId": b.ID, "status": b.Status},
		})
	}
	return res, nil
}

func (s *BookingService) ByVendor(ctx context.Context, email string) ([]*models.Booking, error) {
	return s.store.Bookings().Find(ctx, store.BookingQuery{VendorEmail: normalizeEmail(email)})
}

func (s *BookingService) ByBuyer(ctx context.Context, email string) ([]*models.Booking, error) {
	return s.store.Bookings().Find(ctx, store.BookingQuery{BuyerEmail: normalizeEmail(email)})
}
