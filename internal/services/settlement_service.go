package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/internal/telemetry"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	MessageSettled          = "payment processed"
	MessageAlreadyProcessed = "already processed"

	settlementLockPrefix = "settlement:"
)

type (
	SettlementConfig struct {
		// ClientURL is the storefront origin used for checkout redirects.
		ClientURL string
		Currency  string
		// Locker is optional. Without it concurrent duplicates are still
		// resolved by the store transaction.
		Locker  Locker
		LockTTL time.Duration
	}

	CheckoutRequest struct {
		BookingID string `json:"bookingId"`
		TicketID  string `json:"ticketId"`
		Title     string `json:"ticketTitle"`
		Image     string `json:"image"`
		// UnitPrice and Quantity are accepted for compatibility with older
		// clients; the booking's own values are charged.
		UnitPrice decimal.Decimal `json:"price"`
		Quantity  int             `json:"quantity"`
	}

	SettlementResult struct {
		Success          bool            `json:"success"`
		Message          string          `json:"message"`
		AlreadyProcessed bool            `json:"alreadyProcessed"`
		TransactionID    string          `json:"transactionId"`
		BookingID        string          `json:"bookingId,omitempty"`
		Amount           decimal.Decimal `json:"amount"`
	}
)

// SettlementService moves paid bookings through checkout and settlement.
// ConfirmSettlement is idempotent per payment intent.
type SettlementService struct {
	store    store.Store
	provider checkout.Provider
	cfg      SettlementConfig
	now      func() time.Time
	deps
}

func NewSettlementService(st store.Store, provider checkout.Provider, cfg SettlementConfig, monitor *monitoring.Monitor, notifier notify.Notifier) *SettlementService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &SettlementService{
		store:    st,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		deps:     newDeps(monitor, notifier),
	}
}

// BeginCheckout opens a processor checkout session for a booking the caller
// made. Nothing is written locally.
func (s *SettlementService) BeginCheckout(ctx context.Context, caller Caller, req CheckoutRequest) (*checkout.CreatedSession, error) {
	created, err := s.beginCheckout(ctx, caller, req)
	s.monitor.TrackCheckout(string(s.provider.Name()), err)
	return created, err
}

func (s *SettlementService) beginCheckout(ctx context.Context, caller Caller, req CheckoutRequest) (*checkout.CreatedSession, error) {
	if req.BookingID == "" {
		return nil, invalid("bookingId is required")
	}

	b, err := s.store.Bookings().FindByID(ctx, req.BookingID)
	if errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", status.ErrBookingNotFound, req.BookingID)
	}
	if err != nil {
		return nil, err
	}
	if !caller.Owns(b.BuyerEmail) {
		return nil, fmt.Errorf("%w: booking %s belongs to another buyer", status.ErrForbidden, b.ID)
	}
	if b.Status == models.BookingPaid {
		return nil, fmt.Errorf("%w: %s", status.ErrBookingPaid, b.ID)
	}
	if !b.CanTransitionTo(models.BookingPaid) {
		return nil, invalid("booking %s was %s", b.ID, b.Status)
	}
	if req.TicketID != "" && req.TicketID != b.TicketID {
		return nil, invalid("ticket %s does not match booking %s", req.TicketID, b.ID)
	}

	title := req.Title
	if title == "" {
		title = b.TicketTitle
	}
	unit := b.TotalPrice.Div(decimal.NewFromInt(int64(b.Quantity))).Round(2)

	sessionReq := &checkout.SessionRequest{
		LineItem: checkout.LineItem{
			Name:      title,
			Image:     req.Image,
			UnitPrice: unit,
			Quantity:  b.Quantity,
			Currency:  s.cfg.Currency,
		},
		CustomerEmail: b.BuyerEmail,
		Metadata: map[string]string{
			checkout.MetaTicketID:    b.TicketID,
			checkout.MetaBookingID:   b.ID,
			checkout.MetaTicketTitle: title,
			checkout.MetaBuyerEmail:  b.BuyerEmail,
			checkout.MetaBuyerImage:  req.Image,
		},
		SuccessURL: s.cfg.ClientURL + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.ClientURL + "/dashboard/payment-cancelled",
	}

	created, err := s.provider.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		return nil, err
	}

	slog.Info("checkout session created",
		"session_id", created.ID,
		"booking_id", b.ID,
		"provider", s.provider.Name(),
	)
	return created, nil
}

// ConfirmSettlement records the payment of a completed checkout session.
// The ledger entry, the stock decrement and the booking transition commit
// together; repeating the call for the same session writes nothing and
// reports "already processed".
func (s *SettlementService) ConfirmSettlement(ctx context.Context, sessionID string) (*SettlementResult, error) {
	start := s.now()

	ctx, span := telemetry.Tracer().Start(ctx, "settlement.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("checkout.session_id", sessionID))

	res, err := s.confirm(ctx, sessionID)

	outcome := monitoring.OutcomeSettled
	switch {
	case errors.Is(err, status.ErrPaymentIncomplete):
		outcome = monitoring.OutcomeIncomplete
	case err != nil:
		outcome = monitoring.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.AlreadyProcessed:
		outcome = monitoring.OutcomeAlreadyProcessed
	}
	s.monitor.TrackSettlement(outcome, s.now().Sub(start))
	span.SetAttributes(attribute.String("settlement.outcome", outcome))

	return res, err
}

func (s *SettlementService) confirm(ctx context.Context, sessionID string) (*SettlementResult, error) {
	if sessionID == "" {
		return nil, invalid("session_id is required")
	}

	session, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, status.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", status.ErrUpstream, err)
	}
	if !session.Completed() {
		return nil, fmt.Errorf("%w: session %s is %q", status.ErrPaymentIncomplete, sessionID, session.Status)
	}

	paymentToken := session.PaymentIntentID

	if s.cfg.Locker != nil {
		release, err := s.cfg.Locker.TryLock(ctx, settlementLockPrefix+paymentToken, s.cfg.LockTTL)
		switch {
		case err != nil:
			// the transaction alone keeps settlement correct
			slog.Warn("settlement lock unavailable", "payment_intent", paymentToken, "error", err)
		case release == nil:
			return nil, fmt.Errorf("%w: %s", status.ErrSettlementInProgress, paymentToken)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					slog.Warn("settlement lock release failed", "payment_intent", paymentToken, "error", err)
				}
			}()
		}
	}

	var (
		result  *SettlementResult
		booking *models.Booking
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := tx.Transactions().FindByTransactionID(ctx, paymentToken)
		if err == nil {
			result = &SettlementResult{
				Success:          true,
				Message:          MessageAlreadyProcessed,
				AlreadyProcessed: true,
				TransactionID:    existing.TransactionID,
				BookingID:        existing.BookingID,
				Amount:           existing.Amount,
			}
			return nil
		}
		if !errors.Is(err, status.ErrNotFound) {
			return err
		}

		bookingID := session.Metadata[checkout.MetaBookingID]
		booking, err = tx.Bookings().FindByID(ctx, bookingID)
		if errors.Is(err, status.ErrNotFound) {
			return fmt.Errorf("%w: %q", status.ErrBookingNotFound, bookingID)
		}
		if err != nil {
			return err
		}
		if booking.Status == models.BookingPaid {
			return fmt.Errorf("%w: %s paid by %s", status.ErrBookingPaid, booking.ID, booking.TransactionID)
		}
		if booking.Status == models.BookingRejected {
			// the buyer has been charged; the ledger must reflect it
			slog.Warn("settling a rejected booking", "booking_id", booking.ID, "payment_intent", paymentToken)
		}

		txn := &models.Transaction{
			TransactionID: paymentToken,
			Amount:        checkout.FromMinorUnits(session.AmountTotal),
			Currency:      s.currency(session),
			TicketTitle:   session.Metadata[checkout.MetaTicketTitle],
			TicketID:      booking.TicketID,
			BookingID:     booking.ID,
			BuyerEmail:    booking.BuyerEmail,
			PaymentDate:   s.now().UTC(),
		}
		if txn.TicketTitle == "" {
			txn.TicketTitle = booking.TicketTitle
		}
		if err := tx.Transactions().Insert(ctx, txn); err != nil {
			return fmt.Errorf("record transaction %s: %w", paymentToken, err)
		}

		if err := s.decrementStock(ctx, tx, booking); err != nil {
			return err
		}

		booking.Status = models.BookingPaid
		booking.TransactionID = paymentToken
		if err := tx.Bookings().Update(ctx, booking); err != nil {
			return fmt.Errorf("mark booking %s paid: %w", booking.ID, err)
		}

		result = &SettlementResult{
			Success:       true,
			Message:       MessageSettled,
			TransactionID: txn.TransactionID,
			BookingID:     booking.ID,
			Amount:        txn.Amount,
		}
		return nil
	})
	if err != nil {
		slog.Error("settlement failed", "session_id", sessionID, "payment_intent", paymentToken, "error", err)
		return nil, err
	}

	if result.AlreadyProcessed {
		slog.Info("settlement already processed", "session_id", sessionID, "payment_intent", paymentToken)
		return result, nil
	}

	slog.Info("settlement recorded",
		"session_id", sessionID,
		"payment_intent", paymentToken,
		"booking_id", booking.ID,
		"amount", result.Amount.String(),
	)
	s.notify(ctx, booking.BuyerEmail, notify.Event{
		Type: notify.EventPaymentSuccess,
		Data: map[string]any{
			"bookingId":     booking.ID,
			"transactionId": paymentToken,
			"amount":        result.Amount,
		},
	})
	return result, nil
}

// decrementStock lowers the ticket quantity by the booking quantity. The
// payment is already captured, so shortfalls and deleted tickets are
// logged rather than failing the settlement.
func (s *SettlementService) decrementStock(ctx context.Context, tx store.Store, b *models.Booking) error {
	t, err := tx.Tickets().FindByID(ctx, b.TicketID)
	if errors.Is(err, status.ErrNotFound) {
		slog.Warn("settled booking for a deleted ticket", "booking_id", b.ID, "ticket_id", b.TicketID)
		return nil
	}
	if err != nil {
		return err
	}

	if t.Quantity < b.Quantity {
		s.monitor.TrackOversell()
		slog.Warn("ticket oversold",
			"ticket_id", t.ID,
			"available", t.Quantity,
			"booked", b.Quantity,
			"booking_id", b.ID,
		)
	}

	if _, err := tx.Tickets().DecrementQuantity(ctx, t.ID, b.Quantity); err != nil {
		return fmt.Errorf("decrement ticket %s: %w", t.ID, err)
	}
	return nil
}

func (s *SettlementService) currency(session *checkout.Session) string {
	if session.Currency != "" {
		return session.Currency
	}
	return s.cfg.Currency
}
