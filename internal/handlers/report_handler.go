package handlers

import (
	"net/http"

	"ticket-marketplace/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type ReportHandler struct {
	reports *services.ReportService
	users   CallerResolver
}

func NewReportHandler(reports *services.ReportService, users CallerResolver) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		users:   users,
	}
}

// VendorOverview - GET /vendor-overview?email=
func (h *ReportHandler) VendorOverview(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}
	email, err := emailQuery(e, caller)
	if err != nil {
		return apiError(err)
	}

	overview, err := h.reports.VendorOverview(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, overview)
}

// Transactions - GET /transactions?email=
func (h *ReportHandler) Transactions(e *core.RequestEvent) error {
	caller, err := resolveCaller(e, h.users)
	if err != nil {
		return apiError(err)
	}
	email, err := emailQuery(e, caller)
	if err != nil {
		return apiError(err)
	}

	txns, err := h.reports.TransactionsByBuyer(e.Request.Context(), email)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, txns)
}

// SubmitFeedback - POST /feedback
func (h *ReportHandler) SubmitFeedback(e *core.RequestEvent) error {
	var req services.FeedbackRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	fb, err := h.reports.SubmitFeedback(e.Request.Context(), req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, inserted(fb.ID))
}
