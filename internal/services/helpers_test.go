package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/services/checkout/sandbox"
	"ticket-marketplace/internal/store/memstore"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	vendorEmail = "vendor@example.com"
	buyerEmail  = "buyer@example.com"
	adminEmail  = "admin@example.com"
)

var (
	vendor = Caller{Email: vendorEmail, Role: models.RoleVendor}
	buyer  = Caller{Email: buyerEmail, Role: models.RoleUser}
	admin  = Caller{Email: adminEmail, Role: models.RoleAdmin}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, email string, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]notify.Event)
	}
	r.events[email] = append(r.events[email], ev)
}

func (r *recordingNotifier) types(email string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events[email] {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store      *memstore.Store
	provider   *sandbox.Provider
	notifier   *recordingNotifier
	users      *UserService
	catalog    *CatalogService
	bookings   *BookingService
	settlement *SettlementService
	reports    *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	provider := sandbox.New("http://localhost:8090/dev/checkout")
	notifier := &recordingNotifier{}
	monitor := monitoring.NewMonitor()

	return &fixture{
		store:      st,
		provider:   provider,
		notifier:   notifier,
		users:      NewUserService(st),
		catalog:    NewCatalogService(st, monitor, notifier),
		bookings:   NewBookingService(st, monitor, notifier),
		settlement: NewSettlementService(st, provider, SettlementConfig{ClientURL: "http://client.test"}, monitor, notifier),
		reports:    NewReportService(st),
	}
}

func ticketInput(title string, price string, quantity int) models.TicketInput {
	return models.TicketInput{
		Title:         title,
		From:          "Dhaka",
		To:            "Chittagong",
		TransportType: "bus",
		Perks:         []string{"AC"},
		VendorName:    "Green Line",
		Price:         decimal.RequireFromString(price),
		Quantity:      quantity,
		Departure:     time.Now().Add(72 * time.Hour),
	}
}

func titlePatch(title string) models.TicketPatch {
	return models.TicketPatch{Title: &title}
}

// approvedTicket lists a ticket as vendor and approves it.
func (f *fixture) approvedTicket(t *testing.T, title, price string, quantity int) *models.Ticket {
	t.Helper()
	ctx := context.Background()

	tk, err := f.catalog.CreateTicket(ctx, vendor, ticketInput(title, price, quantity))
	require.NoError(t, err)
	_, err = f.catalog.Moderate(ctx, tk.ID, ActionApprove)
	require.NoError(t, err)

	out, err := f.store.Tickets().FindByID(ctx, tk.ID)
	require.NoError(t, err)
	return out
}

// paidCheckout books quantity seats, opens a checkout and completes it at
// the processor. It returns the booking and the session id.
func (f *fixture) paidCheckout(t *testing.T, ticketID string, quantity int) (*models.Booking, string) {
	t.Helper()
	ctx := context.Background()

	b, err := f.bookings.CreateBooking(ctx, buyer, CreateBookingRequest{TicketID: ticketID, Quantity: quantity, BuyerName: "Buyer"})
	require.NoError(t, err)

	created, err := f.settlement.BeginCheckout(ctx, buyer, CheckoutRequest{BookingID: b.ID, TicketID: ticketID})
	require.NoError(t, err)

	_, err = f.provider.Complete(created.ID)
	require.NoError(t, err)

	return b, created.ID
}
