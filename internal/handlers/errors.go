package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"ticket-marketplace/internal/status"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/tools/router"
)

var conflicts = []error{
	status.ErrAdvertiseBlocked,
	status.ErrNotFraudCandidate,
	status.ErrBookingPaid,
	status.ErrInsufficientStock,
	status.ErrDuplicateTransaction,
	status.ErrSettlementInProgress,
}

// apiError maps service errors onto HTTP errors. Anything unrecognised is
// an upstream failure and surfaces as 500 with its message.
func apiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *router.ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	// record validation from the store, e.g. a required collection field
	var fields validation.Errors
	if errors.As(err, &fields) {
		return apis.NewBadRequestError(fields.Error(), fields)
	}

	switch {
	case errors.Is(err, status.ErrValidation), errors.Is(err, status.ErrPaymentIncomplete):
		return apis.NewBadRequestError(detail(err, status.ErrValidation), nil)
	case errors.Is(err, status.ErrUnauthorized):
		return apis.NewUnauthorizedError("unauthorized access", nil)
	case errors.Is(err, status.ErrForbidden):
		return apis.NewForbiddenError("forbidden access", nil)
	case errors.Is(err, status.ErrNotFound), errors.Is(err, status.ErrBookingNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrDuplicateEmail):
		return router.NewApiError(http.StatusConflict, "user already exists", nil)
	}

	for _, c := range conflicts {
		if errors.Is(err, c) {
			return router.NewApiError(http.StatusConflict, err.Error(), nil)
		}
	}

	slog.Error("request failed", "error", err)
	return apis.NewInternalServerError(err.Error(), nil)
}

// detail strips the sentinel prefix so validation messages read like
// "Email is required".
func detail(err error, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func inserted(id string) map[string]string {
	return map[string]string{"insertedId": id}
}

func deleted(n int) map[string]int {
	return map[string]int{"deletedCount": n}
}
