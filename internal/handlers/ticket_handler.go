package handlers

import (
	"net/http"
	"strconv"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	catalog *services.CatalogService
	users   CallerResolver
}

func NewTicketHandler(catalog *services.CatalogService, users CallerResolver) *TicketHandler {
	return &TicketHandler{
		catalog: catalog,
		users:   users,
	}
}

// CreateTicket - POST /tickets
func (h *TicketHandler) CreateTicket(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	var in models.TicketInput
	if err := e.BindBody(&in); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	t, err := h.catalog.CreateTicket(e.Request.Context(), caller, in)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, inserted(t.ID))
}

// GetTicket - GET /tickets/{id}
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	t, err := h.catalog.VisibleByID(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, t)
}

// UpdateTicket - PATCH /tickets/{id}
func (h *TicketHandler) UpdateTicket(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	var patch models.TicketPatch
	if err := e.BindBody(&patch); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	res, err := h.catalog.UpdateTicket(e.Request.Context(), caller, e.Request.PathValue("id"), patch)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// DeleteTicket - DELETE /tickets/{id}
func (h *TicketHandler) DeleteTicket(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}

	n, err := h.catalog.DeleteTicket(e.Request.Context(), caller, e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, deleted(n))
}

// LatestTickets - GET /latest-tickets?limit=
func (h *TicketHandler) LatestTickets(e *core.RequestEvent) error {
	limit, _ := strconv.Atoi(e.Request.URL.Query().Get("limit"))

	tickets, err := h.catalog.Latest(e.Request.Context(), limit)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) ApprovedTickets(e *core.RequestEvent) error {
	tickets, err := h.catalog.Approved(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) AdvertisedTickets(e *core.RequestEvent) error {
	tickets, err := h.catalog.Advertised(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

// VendorTickets - GET /vendor-tickets?email=
func (h *TicketHandler) VendorTickets(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}
	email, err := emailQuery(e, caller)
	if err != nil {
		return apiError(err)
	}

	tickets, err := h.catalog.ByVendor(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}
