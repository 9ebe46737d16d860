package status

import "errors"

var (
	ErrValidation   = errors.New("validation: invalid request")
	ErrUnauthorized = errors.New("auth: unauthorized access")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrNotFound     = errors.New("store: record not found")

	ErrDuplicateEmail    = errors.New("user: user already exists")
	ErrNotFraudCandidate = errors.New("user: not a vendor, cannot be marked as fraud")

	ErrAdvertiseBlocked  = errors.New("ticket: advertise blocked")
	ErrInsufficientStock = errors.New("ticket: not enough tickets left")

	ErrBookingNotFound = errors.New("booking: booking not found")
	ErrBookingPaid     = errors.New("booking: booking already paid")

	ErrPaymentIncomplete    = errors.New("payment: payment not completed")
	ErrDuplicateTransaction = errors.New("payment: transaction already recorded")
	ErrUpstream             = errors.New("payment: provider request failed")
	ErrSettlementInProgress = errors.New("payment: settlement already in progress")
)
