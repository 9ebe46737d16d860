// Package services holds the marketplace business logic. Handlers resolve
// the caller and pass it in; services never read HTTP state.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Caller is the verified identity behind a request.
type Caller struct {
	Email string
	Role  models.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Owns reports whether the caller may act on a resource owned by email.
func (c Caller) Owns(email string) bool {
	return c.IsAdmin() || (c.Email != "" && strings.EqualFold(c.Email, email))
}

type deps struct {
	monitor  *monitoring.Monitor
	notifier notify.Notifier
}

func newDeps(monitor *monitoring.Monitor, notifier notify.Notifier) deps {
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return deps{monitor: monitor, notifier: notifier}
}

// notify sends ev without tying it to the request lifetime.
func (d deps) notify(ctx context.Context, email string, ev notify.Event) {
	d.notifier.Notify(context.WithoutCancel(ctx), email, ev)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", status.ErrValidation, fmt.Sprintf(format, args...))
}

// invalidFields wraps field errors from ozzo-validation in
// status.ErrValidation. Rule misconfiguration passes through unchanged.
func invalidFields(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return fmt.Errorf("%w: %s", status.ErrValidation, fields.Error())
	}
	var rule validation.Error
	if errors.As(err, &rule) {
		return fmt.Errorf("%w: %s", status.ErrValidation, rule.Error())
	}
	return err
}

func nonNegativeMoney(value any) error {
	if d, ok := value.(decimal.Decimal); ok && d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
