package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const DefaultLatestLimit = 8

type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
)

// FraudResult reports what MarkVendorFraud changed.
type FraudResult struct {
	UserUpdate    store.UpdateResult `json:"userUpdate"`
	TicketsUpdate store.UpdateResult `json:"ticketsUpdate"`
}

type CatalogService struct {
	store store.Store
	deps
}

func NewCatalogService(st store.Store, monitor *monitoring.Monitor, notifier notify.Notifier) *CatalogService {
	return &CatalogService{store: st, deps: newDeps(monitor, notifier)}
}

func validateTicket(t *models.Ticket) error {
	t.Title = strings.TrimSpace(t.Title)
	t.From = strings.TrimSpace(t.From)
	t.To = strings.TrimSpace(t.To)

	return invalidFields(validation.ValidateStruct(t,
		validation.Field(&t.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&t.From, validation.Required),
		validation.Field(&t.To, validation.Required),
		validation.Field(&t.VendorEmail, validation.Required, is.EmailFormat),
		validation.Field(&t.Price, validation.By(nonNegativeMoney)),
		validation.Field(&t.Quantity, validation.Min(0)),
	))
}

func applyInput(t *models.Ticket, in *models.TicketInput) {
	t.Title = in.Title
	t.From = in.From
	t.To = in.To
	t.TransportType = in.TransportType
	t.Perks = in.Perks
	t.Image = in.Image
	t.VendorName = in.VendorName
	t.Price = in.Price
	t.Quantity = in.Quantity
	t.Departure = in.Departure
}

func normalizeTicket(t *models.Ticket) {
	if t.Perks == nil {
		t.Perks = []string{}
	}
	t.Price = t.Price.Round(2)
}

// CreateTicket lists a new ticket for the caller. New tickets always wait
// for moderation, whatever status the input carries.
func (s *CatalogService) CreateTicket(ctx context.Context, caller Caller, in models.TicketInput) (*models.Ticket, error) {
	if caller.Role == models.RoleFraud {
		return nil, fmt.Errorf("%w: account is marked as fraud", status.ErrForbidden)
	}

	t := &models.Ticket{
		VendorEmail:     caller.Email,
		Status:          models.TicketPending,
		IsHiddenByAdmin: false,
		Advertised:      false,
	}
	applyInput(t, &in)
	if err := validateTicket(t); err != nil {
		return nil, err
	}
	normalizeTicket(t)

	if err := s.store.Tickets().Insert(ctx, t); err != nil {
		return nil, err
	}

	slog.Info("ticket created", "ticket_id", t.ID, "vendor", t.VendorEmail)
	return t, nil
}

func (s *CatalogService) ownedTicket(ctx context.Context, tx store.Store, caller Caller, id string) (*models.Ticket, error) {
	t, err := tx.Tickets().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	if caller.Role == models.RoleFraud || !caller.Owns(t.VendorEmail) {
		return nil, fmt.Errorf("%w: ticket %s belongs to another vendor", status.ErrForbidden, id)
	}
	return t, nil
}

// UpdateTicket changes the supplied fields of a ticket and sends it back to
// moderation.
func (s *CatalogService) UpdateTicket(ctx context.Context, caller Caller, id string, patch models.TicketPatch) (store.UpdateResult, error) {
	var res store.UpdateResult

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := s.ownedTicket(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		res.MatchedCount = 1

		patch.ApplyTo(t)
		if err := validateTicket(t); err != nil {
			return err
		}
		normalizeTicket(t)
		t.Status = models.TicketPending

		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		res.ModifiedCount = 1
		return nil
	})
	return res, err
}

// DeleteTicket removes a ticket and returns the deleted count.
func (s *CatalogService) DeleteTicket(ctx context.Context, caller Caller, id string) (int, error) {
	var deleted int

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := s.ownedTicket(ctx, tx, caller, id); err != nil {
			return err
		}

		n, err := tx.Tickets().Delete(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("ticket %s: %w", id, status.ErrNotFound)
		}
		deleted = n
		return nil
	})
	return deleted, err
}

// Moderate applies an admin decision. Rejected tickets are also hidden.
func (s *CatalogService) Moderate(ctx context.Context, id string, action ModerationAction) (store.UpdateResult, error) {
	var res store.UpdateResult

	var (
		next   models.TicketStatus
		hidden bool
	)
	switch action {
	case ActionApprove:
		next, hidden = models.TicketApproved, false
	case ActionReject:
		next, hidden = models.TicketRejected, true
	default:
		return res, invalid("unknown moderation action %q", action)
	}

	t, err := s.store.Tickets().FindByID(ctx, id)
	if err != nil {
		return res, fmt.Errorf("ticket %s: %w", id, err)
	}
	res.MatchedCount = 1

	if t.Status == next && t.IsHiddenByAdmin == hidden {
		return res, nil
	}

	t.Status = next
	t.IsHiddenByAdmin = hidden
	if err := s.store.Tickets().Update(ctx, t); err != nil {
		return res, err
	}
	res.ModifiedCount = 1

	s.monitor.TrackModeration(string(action))
	s.notify(ctx, t.VendorEmail, notify.Event{
		Type: notify.EventTicketModerated,
		Data: map[string]any{"ticketId": t.ID, "status": t.Status},
	})
	return res, nil
}

// SetAdvertised toggles the advertised flag. Enabling is refused for hidden
// tickets and once MaxAdvertised tickets are advertised; the count and the
// write share one transaction.
func (s *CatalogService) SetAdvertised(ctx context.Context, id string, advertised bool) (store.UpdateResult, error) {
	var res store.UpdateResult

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.Tickets().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("ticket %s: %w", id, err)
		}
		res.MatchedCount = 1

		if t.Advertised == advertised {
			return nil
		}

		if advertised {
			if t.IsHiddenByAdmin {
				return fmt.Errorf("%w: ticket is hidden by admin", status.ErrAdvertiseBlocked)
			}

			on := true
			n, err := tx.Tickets().Count(ctx, store.TicketQuery{Advertised: &on})
			if err != nil {
				return err
			}
			if n >= models.MaxAdvertised {
				return fmt.Errorf("%w: maximum %d tickets can be advertised", status.ErrAdvertiseBlocked, models.MaxAdvertised)
			}
		}

		t.Advertised = advertised
		if err := tx.Tickets().Update(ctx, t); err != nil {
			return err
		}
		res.ModifiedCount = 1
		return nil
	})
	return res, err
}

// MarkVendorFraud flags a vendor as fraud and hides every ticket they
// listed, in one transaction.
func (s *CatalogService) MarkVendorFraud(ctx context.Context, userID string) (*FraudResult, error) {
	out := &FraudResult{}

	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		u, err := tx.Users().FindByID(ctx, userID)
		if errors.Is(err, status.ErrNotFound) {
			return fmt.Errorf("%w: user %s does not exist", status.ErrNotFraudCandidate, userID)
		}
		if err != nil {
			return err
		}
		if u.Role != models.RoleVendor {
			return fmt.Errorf("%w: user %s has role %q", status.ErrNotFraudCandidate, userID, u.Role)
		}

		u.Role = models.RoleFraud
		if err := tx.Users().Update(ctx, u); err != nil {
			return err
		}
		out.UserUpdate = store.UpdateResult{MatchedCount: 1, ModifiedCount: 1}

		res, err := tx.Tickets().HideByVendor(ctx, u.Email)
		if err != nil {
			return err
		}
		out.TicketsUpdate = res

		slog.Warn("vendor marked as fraud",
			"user_id", u.ID,
			"email", u.Email,
			"tickets_hidden", res.ModifiedCount,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the newest visible tickets, DefaultLatestLimit when limit
// is not positive.
func (s *CatalogService) Latest(ctx context.Context, limit int) ([]*models.Ticket, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	return s.store.Tickets().Find(ctx, store.TicketQuery{VisibleOnly: true, Sort: "-created", Limit: limit})
}

func (s *CatalogService) Approved(ctx context.Context) ([]*models.Ticket, error) {
	return s.store.Tickets().Find(ctx, store.TicketQuery{VisibleOnly: true, Sort: "-created"})
}

func (s *CatalogService) Advertised(ctx context.Context) ([]*models.Ticket, error) {
	on := true
	return s.store.Tickets().Find(ctx, store.TicketQuery{VisibleOnly: true, Advertised: &on, Sort: "-created"})
}

// VisibleByID hides tickets that fail the visibility filter behind
// status.ErrNotFound.
func (s *CatalogService) VisibleByID(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := s.store.Tickets().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", id, err)
	}
	if !t.Visible() {
		return nil, fmt.Errorf("ticket %s: %w", id, status.ErrNotFound)
	}
	return t, nil
}

func (s *CatalogService) ByVendor(ctx context.Context, email string) ([]*models.Ticket, error) {
	return s.store.Tickets().Find(ctx, store.TicketQuery{VendorEmail: normalizeEmail(email), Sort: "-created"})
}

func (s *CatalogService) All(ctx context.Context) ([]*models.Ticket, error) {
	return s.store.Tickets().Find(ctx, store.TicketQuery{Sort: "-created"})
}
