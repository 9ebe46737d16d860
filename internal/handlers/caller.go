package handlers

import (
	"context"
	"fmt"
	"strings"

	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

// CallerResolver turns a verified email into a caller with its role.
type CallerResolver interface {
	Caller(ctx context.Context, email string) (services.Caller, error)
}

func resolveCaller(e *core.RequestEvent, users CallerResolver) (services.Caller, error) {
	email := auth.CallerEmail(e)
	if email == "" {
		return services.Caller{}, status.ErrUnauthorized
	}
	return users.Caller(e.Request.Context(), email)
}

// emailQuery reads the ?email= parameter of the per-user listings. Only
// admins may look at somebody else's data.
func emailQuery(e *core.RequestEvent, caller services.Caller) (string, error) {
	email := strings.ToLower(strings.TrimSpace(e.Request.URL.Query().Get("email")))
	if email == "" {
		return "", fmt.Errorf("%w: Email is required", status.ErrValidation)
	}
	if !caller.Owns(email) {
		return "", fmt.Errorf("%w: %s", status.ErrForbidden, email)
	}
	return email, nil
}
