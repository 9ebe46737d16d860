package services

import (
	"context"
	"testing"
	"time"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingService_CreateBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.approvedTicket(t, "Night bus", "25.00", 10)

	b, err := f.bookings.CreateBooking(ctx, buyer, CreateBookingRequest{TicketID: tk.ID, Quantity: 3, BuyerName: "Buyer"})

	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, "Night bus", b.TicketTitle)
	assert.Equal(t, vendorEmail, b.VendorEmail)
	assert.Equal(t, buyerEmail, b.BuyerEmail)
	assert.Equal(t, "75", b.TotalPrice.String())
	assert.Equal(t, []string{"booking_requested"}, f.notifier.types(vendorEmail))

	// booking reserves nothing
	got, err := f.store.Tickets().FindByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
}

func TestBookingService_CreateBookingRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	visible := f.approvedTicket(t, "Visible", "10", 2)

	pending, err := f.catalog.CreateTicket(ctx, vendor, ticketInput("Pending", "10", 2))
	require.NoError(t, err)

	departedIn := ticketInput("Departed", "10", 2)
	departedIn.Departure = time.Now().Add(-time.Hour)
	departed, err := f.catalog.CreateTicket(ctx, vendor, departedIn)
	require.NoError(t, err)
	_, err = f.catalog.Moderate(ctx, departed.ID, ActionApprove)
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller Caller
		req    CreateBookingRequest
		want   error
	}{
		{"anonymous", Caller{}, CreateBookingRequest{TicketID: visible.ID, Quantity: 1}, status.ErrUnauthorized},
		{"missing ticket id", buyer, CreateBookingRequest{Quantity: 1}, status.ErrValidation},
		{"zero quantity", buyer, CreateBookingRequest{TicketID: visible.ID}, status.ErrValidation},
		{"unknown ticket", buyer, CreateBookingRequest{TicketID: "missing", Quantity: 1}, status.ErrNotFound},
		{"pending ticket", buyer, CreateBookingRequest{TicketID: pending.ID, Quantity: 1}, status.ErrNotFound},
		{"departed ticket", buyer, CreateBookingRequest{TicketID: departed.ID, Quantity: 1}, status.ErrValidation},
		{"more than stock", buyer, CreateBookingRequest{TicketID: visible.ID, Quantity: 3}, status.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bookings.CreateBooking(ctx, tt.caller, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	none, err := f.bookings.ByBuyer(ctx, buyerEmail)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBookingService_VendorDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.approvedTicket(t, "Bus", "10", 5)

	b, err := f.bookings.CreateBooking(ctx, buyer, CreateBookingRequest{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)

	res, err := f.bookings.VendorDecide(ctx, vendor, b.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ModifiedCount)

	res, err = f.bookings.VendorDecide(ctx, vendor, b.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchedCount)
	assert.Equal(t, 0, res.ModifiedCount)

	_, err = f.bookings.VendorDecide(ctx, vendor, b.ID, DecisionReject)
	require.NoError(t, err)

	// a rejection can be reconsidered
	_, err = f.bookings.VendorDecide(ctx, vendor, b.ID, DecisionAccept)
	require.NoError(t, err)

	got, err := f.store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAccepted, got.Status)
	assert.Equal(t, []string{"booking_decided", "booking_decided", "booking_decided"}, f.notifier.types(buyerEmail))
}

func TestBookingService_VendorDecideGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.approvedTicket(t, "Bus", "10", 5)

	b, err := f.bookings.CreateBooking(ctx, buyer, CreateBookingRequest{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.bookings.VendorDecide(ctx, Caller{Email: "other@example.com", Role: models.RoleVendor}, b.ID, DecisionAccept)
	assert.ErrorIs(t, err, status.ErrForbidden)

	_, err = f.bookings.VendorDecide(ctx, vendor, "missing", DecisionAccept)
	assert.ErrorIs(t, err, status.ErrBookingNotFound)

	_, err = f.bookings.VendorDecide(ctx, vendor, b.ID, "maybe")
	assert.ErrorIs(t, err, status.ErrValidation)

	_, err = f.bookings.VendorDecide(ctx, admin, b.ID, DecisionAccept)
	assert.NoError(t, err)
}

func TestBookingService_PaidBookingIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.approvedTicket(t, "Bus", "10", 5)

	b, sessionID := f.paidCheckout(t, tk.ID, 2)
	_, err := f.settlement.ConfirmSettlement(ctx, sessionID)
	require.NoError(t, err)

	for _, d := range []Decision{DecisionAccept, DecisionReject} {
		_, err := f.bookings.VendorDecide(ctx, vendor, b.ID, d)
		assert.ErrorIs(t, err, status.ErrBookingPaid)
	}

	got, err := f.store.Bookings().FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPaid, got.Status)
}

func TestBookingService_Listings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.approvedTicket(t, "Bus", "10", 5)

	other := Caller{Email: "other@example.com", Role: models.RoleUser}
	_, err := f.bookings.CreateBooking(ctx, buyer, CreateBookingRequest{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.bookings.CreateBooking(ctx, other, CreateBookingRequest{TicketID: tk.ID, Quantity: 1})
	require.NoError(t, err)

	mine, err := f.bookings.ByBuyer(ctx, "Buyer@Example.com")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	sold, err := f.bookings.ByVendor(ctx, vendorEmail)
	require.NoError(t, err)
	assert.Len(t, sold, 2)
}
