package cmd

import (
	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/handlers"
	"ticket-marketplace/internal/telemetry"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/security"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

type middleware = func(e *core.RequestEvent) error

// routes holds everything the HTTP surface is built from.
type routes struct {
	verifier auth.Verifier
	roles    auth.RoleLookup
	// limiter is nil when Redis is not configured.
	limiter *security.RateLimiter

	metrics       bool
	webhooks      bool
	sandboxRoutes bool

	health   *handlers.HealthHandler
	tickets  *handlers.TicketHandler
	bookings *handlers.BookingHandler
	admin    *handlers.AdminHandler
	users    *handlers.UserHandler
	reports  *handlers.ReportHandler
	payments *handlers.PaymentHandler
}

func passthrough(e *core.RequestEvent) error {
	return e.Next()
}

func (rt *routes) register(r *router.Router[*core.RequestEvent]) {
	r.BindFunc(telemetry.Middleware())
	if rt.metrics {
		r.BindFunc(monitoring.Middleware())
		r.GET("/metrics", apis.WrapStdHandler(monitoring.Handler()))
	}

	limit, antiBot := middleware(passthrough), middleware(passthrough)
	if rt.limiter != nil {
		limit = rt.limiter.RateLimit()
		antiBot = rt.limiter.AntiBot()
	}

	// Route middlewares run in order: the caller is verified before the
	// limiter keys on it.
	requireAuth := auth.RequireAuth(rt.verifier)
	requireAdmin := auth.RequireRole(rt.roles, models.RoleAdmin)

	// Health
	r.GET("/{$}", rt.health.Root)
	r.GET("/health", rt.health.Health)

	// Ticket endpoints
	r.POST("/tickets", rt.tickets.CreateTicket).BindFunc(requireAuth, limit)
	r.GET("/tickets/{id}", rt.tickets.GetTicket).BindFunc(limit)
	r.PATCH("/tickets/{id}", rt.tickets.UpdateTicket).BindFunc(requireAuth, limit)
	r.DELETE("/tickets/{id}", rt.tickets.DeleteTicket).BindFunc(requireAuth, limit)
	r.GET("/latest-tickets", rt.tickets.LatestTickets).BindFunc(limit)
	r.GET("/approved-tickets", rt.tickets.ApprovedTickets).BindFunc(limit)
	r.GET("/advertised-tickets", rt.tickets.AdvertisedTickets).BindFunc(limit)
	r.GET("/vendor-tickets", rt.tickets.VendorTickets).BindFunc(requireAuth, limit)

	// Admin endpoints
	admin := r.Group("/ticketsAdmin")
	admin.BindFunc(requireAuth, requireAdmin, limit)
	admin.GET("", rt.admin.AllTickets)
	admin.PATCH("/{id}/approve", rt.admin.ApproveTicket)
	admin.PATCH("/{id}/reject", rt.admin.RejectTicket)
	admin.PATCH("/{id}/advertise", rt.admin.AdvertiseTicket)

	// Booking endpoints
	r.POST("/tickets-booking", rt.bookings.CreateBooking).BindFunc(requireAuth, antiBot, limit)
	r.GET("/requested-tickets", rt.bookings.RequestedTickets).BindFunc(requireAuth, limit)
	r.PATCH("/accept-booking/{id}", rt.bookings.AcceptBooking).BindFunc(requireAuth, limit)
	r.PATCH("/reject-booking/{id}", rt.bookings.RejectBooking).BindFunc(requireAuth, limit)
	r.GET("/user-tickets", rt.bookings.UserTickets).BindFunc(requireAuth, limit)

	// User endpoints
	r.POST("/users", rt.users.CreateUser).BindFunc(limit)
	r.GET("/users", rt.admin.ListUsers).BindFunc(requireAuth, requireAdmin, limit)
	r.GET("/users/{email}/role", rt.users.GetRole).BindFunc(requireAuth, limit)
	r.PATCH("/users/{id}/role", rt.admin.SetRole).BindFunc(requireAuth, requireAdmin, limit)
	r.PATCH("/users/{id}/fraud", rt.admin.MarkFraud).BindFunc(requireAuth, requireAdmin, limit)

	// Reports
	r.GET("/vendor-overview", rt.reports.VendorOverview).BindFunc(requireAuth, limit)
	r.GET("/transactions", rt.reports.Transactions).BindFunc(requireAuth, limit)
	r.POST("/feedback", rt.reports.SubmitFeedback).BindFunc(limit)
	r.GET("/feedback", rt.admin.ListFeedback).BindFunc(requireAuth, requireAdmin, limit)

	// Payment endpoints
	r.POST("/create-checkout-session", rt.payments.CreateCheckoutSession).BindFunc(requireAuth, antiBot, limit)
	r.PATCH("/payment-success", rt.payments.PaymentSuccess).BindFunc(requireAuth, limit)
	if rt.webhooks {
		r.POST("/webhooks/checkout", rt.payments.Webhook)
	}

	// Hosted sandbox checkout, development only
	if rt.sandboxRoutes {
		r.POST("/dev/checkout-sessions/{id}/complete", rt.payments.CompleteSandboxSession)
		r.GET("/dev/checkout/{id}", rt.payments.SandboxCheckoutPage)
	}
}
