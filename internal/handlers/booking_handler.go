package handlers

import (
	"net/http"

	"ticket-marketplace/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type BookingHandler struct {
	bookings *services.BookingService
	users    CallerResolver
}

func NewBookingHandler(bookings *services.BookingService, users CallerResolver) *BookingHandler {
	return &BookingHandler{
		bookings: bookings,
		users:    users,
	}
}

// CreateBooking - POST /tickets-booking
func (h *BookingHandler) CreateBooking(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	var req services.CreateBookingRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	b, err := h.bookings.CreateBooking(e.Request.Context(), caller, req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, inserted(b.ID))
}

// RequestedTickets - GET /requested-tickets?email=, bookings made on the
// vendor's tickets.
func (h *BookingHandler) RequestedTickets(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}
	email, err := emailQuery(e, caller)
	if err != nil {
		return apiError(err)
	}

	bookings, err := h.bookings.ByVendor(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, bookings)
}

// UserTickets - GET /user-tickets?email=, the buyer's own bookings.
func (h *BookingHandler) UserTickets(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}
	email, err := emailQuery(e, caller)
	if err != nil {
		return apiError(err)
	}

	bookings, err := h.bookings.ByBuyer(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, bookings)
}

// AcceptBooking - PATCH /accept-booking/{id}
func (h *BookingHandler) AcceptBooking(e *core.RequestEvent) error {
	return h.decide(e, services.DecisionAccept)
}

// RejectBooking - PATCH /reject-booking/{id}
func (h *BookingHandler) RejectBooking(e *core.RequestEvent) error {
	return h.decide(e, services.DecisionReject)
}

func (h *BookingHandler) decide(e *core.RequestEvent, d services.Decision) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	res, err := h.bookings.VendorDecide(e.Request.Context(), caller, e.Request.PathValue("id"), d)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}
