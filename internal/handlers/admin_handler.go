package handlers

import (
	"net/http"

	"ticket-marketplace/internal/services"
	"ticket-marketplace/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// AdminHandler serves the moderation routes. Every route is mounted behind
// auth.RequireRole(admin).
type AdminHandler struct {
	catalog *services.CatalogService
	users   *services.UserService
	reports *services.ReportService
}

func NewAdminHandler(catalog *services.CatalogService, users *services.UserService, reports *services.ReportService) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		users:   users,
		reports: reports,
	}
}

// AllTickets - GET /ticketsAdmin, no visibility filter
func (h *AdminHandler) AllTickets(e *core.RequestEvent) error {
	tickets, err := h.catalog.All(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, tickets)
}

// ApproveTicket - PATCH /ticketsAdmin/{id}/approve
func (h *AdminHandler) ApproveTicket(e *core.RequestEvent) error {
	return h.moderate(e, services.ActionApprove)
}

// RejectTicket - PATCH /ticketsAdmin/{id}/reject
func (h *AdminHandler) RejectTicket(e *core.RequestEvent) error {
	return h.moderate(e, services.ActionReject)
}

func (h *AdminHandler) moderate(e *core.RequestEvent, action services.ModerationAction) error {
	res, err := h.catalog.Moderate(e.Request.Context(), e.Request.PathValue("id"), action)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// AdvertiseTicket - PATCH /ticketsAdmin/{id}/advertise {"advertised": bool}
func (h *AdminHandler) AdvertiseTicket(e *core.RequestEvent) error {
	var req struct {
		Advertised bool `json:"advertised"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	res, err := h.catalog.SetAdvertised(e.Request.Context(), e.Request.PathValue("id"), req.Advertised)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// ListUsers - GET /users
func (h *AdminHandler) ListUsers(e *core.RequestEvent) error {
	users, err := h.users.ListUsers(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, users)
}

// SetRole - PATCH /users/{id}/role {"role": "vendor"}
func (h *AdminHandler) SetRole(e *core.RequestEvent) error {
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	res, err := h.users.SetRole(e.Request.Context(), e.Request.PathValue("id"), req.Role)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// MarkFraud - PATCH /users/{id}/fraud
func (h *AdminHandler) MarkFraud(e *core.RequestEvent) error {
	res, err := h.catalog.MarkVendorFraud(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, res)
}

// ListFeedback - GET /feedback
func (h *AdminHandler) ListFeedback(e *core.RequestEvent) error {
	list, err := h.reports.ListFeedback(e.Request.Context())
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, list)
}
