// Package pbstore implements store.Store on top of PocketBase collections.
package pbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/security"
	"github.com/shopspring/decimal"
)

const (
	CollectionTickets      = "tickets"
	CollectionBookings     = "bookings"
	CollectionUsers        = "users"
	CollectionTransactions = "transactions"
	CollectionFeedback     = "feedback"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func (s *Store) Tickets() store.TicketRepository           { return ticketRepo{s.app} }
func (s *Store) Bookings() store.BookingRepository         { return bookingRepo{s.app} }
func (s *Store) Users() store.UserRepository               { return userRepo{s.app} }
func (s *Store) Transactions() store.TransactionRepository { return transactionRepo{s.app} }
func (s *Store) Feedback() store.FeedbackRepository        { return feedbackRepo{s.app} }

// RunInTransaction delegates to PocketBase, which serializes write
// transactions on its single writer connection.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&Store{app: txApp})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.app.DB().NewQuery("SELECT 1").WithContext(ctx).Execute()
	return err
}

// notFound converts PocketBase's sql.ErrNoRows into status.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.ErrNotFound
	}
	return err
}

func newRecord(app core.App, name string) (*core.Record, error) {
	collection, err := app.FindCachedCollectionByNameOrId(name)
	if err != nil {
		return nil, fmt.Errorf("pbstore: collection %q: %w", name, err)
	}
	return core.NewRecord(collection), nil
}

func money(r *core.Record, key string) decimal.Decimal {
	return decimal.NewFromFloat(r.GetFloat(key)).Round(2)
}

// ---------------------------------------------------------------------------

type ticketRepo struct{ app core.App }

func ticketFromRecord(r *core.Record) *models.Ticket {
	t := &models.Ticket{
		ID:              r.Id,
		Title:           r.GetString("title"),
		From:            r.GetString("from"),
		To:              r.GetString("to"),
		TransportType:   r.GetString("transportType"),
		Image:           r.GetString("image"),
		VendorName:      r.GetString("vendorName"),
		VendorEmail:     r.GetString("vendorEmail"),
		Price:           money(r, "price"),
		Quantity:        r.GetInt("quantity"),
		Departure:       r.GetDateTime("departure").Time(),
		Status:          models.TicketStatus(r.GetString("status")),
		IsHiddenByAdmin: r.GetBool("isHiddenByAdmin"),
		Advertised:      r.GetBool("advertised"),
		Created:         r.GetDateTime("created").Time(),
		Updated:         r.GetDateTime("updated").Time(),
	}
	if err := r.UnmarshalJSONField("perks", &t.Perks); err != nil {
		slog.Warn("unreadable ticket perks", "ticket_id", r.Id, "error", err)
		t.Perks = nil
	}
	if t.Perks == nil {
		t.Perks = []string{}
	}
	return t
}

func fillTicket(r *core.Record, t *models.Ticket) {
	r.Set("title", t.Title)
	r.Set("from", t.From)
	r.Set("to", t.To)
	r.Set("transportType", t.TransportType)
	r.Set("perks", t.Perks)
	r.Set("image", t.Image)
	r.Set("vendorName", t.VendorName)
	r.Set("vendorEmail", t.VendorEmail)
	r.Set("price", t.Price.InexactFloat64())
	r.Set("quantity", t.Quantity)
	r.Set("departure", t.Departure)
	r.Set("status", string(t.Status))
	r.Set("isHiddenByAdmin", t.IsHiddenByAdmin)
	r.Set("advertised", t.Advertised)
}

func ticketExprs(q store.TicketQuery) []dbx.Expression {
	exprs := []dbx.Expression{}
	if q.VisibleOnly {
		exprs = append(exprs, dbx.HashExp{
			"status":          string(models.TicketApproved),
			"isHiddenByAdmin": false,
		})
	}
	if q.Advertised != nil {
		exprs = append(exprs, dbx.HashExp{"advertised": *q.Advertised})
	}
	if q.VendorEmail != "" {
		exprs = append(exprs, dbx.HashExp{"vendorEmail": q.VendorEmail})
	}
	return exprs
}

func ticketFilter(q store.TicketQuery) (string, dbx.Params) {
	parts := []string{"id != ''"}
	params := dbx.Params{}
	if q.VisibleOnly {
		parts = append(parts, "status = 'approved'", "isHiddenByAdmin = false")
	}
	if q.Advertised != nil {
		parts = append(parts, "advertised = {:advertised}")
		params["advertised"] = *q.Advertised
	}
	if q.VendorEmail != "" {
		parts = append(parts, "vendorEmail = {:vendorEmail}")
		params["vendorEmail"] = q.VendorEmail
	}
	return strings.Join(parts, " && "), params
}

func (r ticketRepo) Insert(ctx context.Context, t *models.Ticket) error {
	rec, err := newRecord(r.app, CollectionTickets)
	if err != nil {
		return err
	}
	fillTicket(rec, t)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*t = *ticketFromRecord(rec)
	return nil
}

func (r ticketRepo) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	rec, err := r.app.FindRecordById(CollectionTickets, id)
	if err != nil {
		return nil, notFound(err)
	}
	return ticketFromRecord(rec), nil
}

func (r ticketRepo) Find(_ context.Context, q store.TicketQuery) ([]*models.Ticket, error) {
	filter, params := ticketFilter(q)
	sort := q.Sort
	if sort == "" {
		sort = "created"
	}
	recs, err := r.app.FindRecordsByFilter(CollectionTickets, filter, sort, q.Limit, 0, params)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Ticket, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ticketFromRecord(rec))
	}
	return out, nil
}

func (r ticketRepo) Count(_ context.Context, q store.TicketQuery) (int, error) {
	n, err := r.app.CountRecords(CollectionTickets, ticketExprs(q)...)
	return int(n), err
}

func (r ticketRepo) Update(ctx context.Context, t *models.Ticket) error {
	rec, err := r.app.FindRecordById(CollectionTickets, t.ID)
	if err != nil {
		return notFound(err)
	}
	fillTicket(rec, t)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*t = *ticketFromRecord(rec)
	return nil
}

func (r ticketRepo) Delete(ctx context.Context, id string) (int, error) {
	rec, err := r.app.FindRecordById(CollectionTickets, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if err := r.app.DeleteWithContext(ctx, rec); err != nil {
		return 0, err
	}
	return 1, nil
}

func (r ticketRepo) HideByVendor(ctx context.Context, vendorEmail string) (store.UpdateResult, error) {
	var res store.UpdateResult

	recs, err := r.app.FindAllRecords(CollectionTickets, dbx.HashExp{"vendorEmail": vendorEmail})
	if err != nil {
		return res, err
	}
	for _, rec := range recs {
		res.MatchedCount++
		if rec.GetBool("isHiddenByAdmin") && rec.GetString("status") == string(models.TicketRejected) {
			continue
		}
		rec.Set("isHiddenByAdmin", true)
		rec.Set("status", string(models.TicketRejected))
		if err := r.app.SaveWithContext(ctx, rec); err != nil {
			return res, err
		}
		res.ModifiedCount++
	}
	return res, nil
}

func (r ticketRepo) DecrementQuantity(ctx context.Context, id string, n int) (int, error) {
	rec, err := r.app.FindRecordById(CollectionTickets, id)
	if err != nil {
		return 0, notFound(err)
	}
	left := max(rec.GetInt("quantity")-n, 0)
	rec.Set("quantity", left)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return 0, err
	}
	return left, nil
}

// ---------------------------------------------------------------------------

type bookingRepo struct{ app core.App }

func bookingFromRecord(r *core.Record) *models.Booking {
	return &models.Booking{
		ID:            r.Id,
		TicketID:      r.GetString("ticketId"),
		TicketTitle:   r.GetString("ticketTitle"),
		BuyerName:     r.GetString("buyerName"),
		BuyerEmail:    r.GetString("buyerEmail"),
		VendorEmail:   r.GetString("vendorEmail"),
		Quantity:      r.GetInt("quantity"),
		TotalPrice:    money(r, "totalPrice"),
		Status:        models.BookingStatus(r.GetString("status")),
		TransactionID: r.GetString("transactionId"),
		Created:       r.GetDateTime("created").Time(),
	}
}

func fillBooking(r *core.Record, b *models.Booking) {
	r.Set("ticketId", b.TicketID)
	r.Set("ticketTitle", b.TicketTitle)
	r.Set("buyerName", b.BuyerName)
	r.Set("buyerEmail", b.BuyerEmail)
	r.Set("vendorEmail", b.VendorEmail)
	r.Set("quantity", b.Quantity)
	r.Set("totalPrice", b.TotalPrice.InexactFloat64())
	r.Set("status", string(b.Status))
	r.Set("transactionId", b.TransactionID)
}

func (r bookingRepo) Insert(ctx context.Context, b *models.Booking) error {
	rec, err := newRecord(r.app, CollectionBookings)
	if err != nil {
		return err
	}
	fillBooking(rec, b)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*b = *bookingFromRecord(rec)
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id string) (*models.Booking, error) {
	rec, err := r.app.FindRecordById(CollectionBookings, id)
	if err != nil {
		return nil, notFound(err)
	}
	return bookingFromRecord(rec), nil
}

func (r bookingRepo) Find(_ context.Context, q store.BookingQuery) ([]*models.Booking, error) {
	exp := dbx.HashExp{}
	if q.BuyerEmail != "" {
		exp["buyerEmail"] = q.BuyerEmail
	}
	if q.VendorEmail != "" {
		exp["vendorEmail"] = q.VendorEmail
	}
	if q.Status != "" {
		exp["status"] = string(q.Status)
	}

	var exprs []dbx.Expression
	if len(exp) > 0 {
		exprs = append(exprs, exp)
	}
	recs, err := r.app.FindAllRecords(CollectionBookings, exprs...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, bookingFromRecord(rec))
	}
	slices.SortStableFunc(out, func(a, b *models.Booking) int {
		return a.Created.Compare(b.Created)
	})
	return out, nil
}

func (r bookingRepo) Update(ctx context.Context, b *models.Booking) error {
	rec, err := r.app.FindRecordById(CollectionBookings, b.ID)
	if err != nil {
		return notFound(err)
	}
	fillBooking(rec, b)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*b = *bookingFromRecord(rec)
	return nil
}

// ---------------------------------------------------------------------------

// userRepo stores marketplace users in PocketBase's "users" auth
// collection, so PocketBase issued auth tokens resolve to the same records.
type userRepo struct{ app core.App }

func userFromRecord(r *core.Record) *models.User {
	return &models.User{
		ID:       r.Id,
		Email:    r.Email(),
		Name:     r.GetString("name"),
		PhotoURL: r.GetString("photoURL"),
		Role:     models.Role(r.GetString("role")),
		Created:  r.GetDateTime("created").Time(),
	}
}

func (r userRepo) Insert(ctx context.Context, u *models.User) error {
	if _, err := r.app.FindAuthRecordByEmail(CollectionUsers, u.Email); err == nil {
		return status.ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	rec, err := newRecord(r.app, CollectionUsers)
	if err != nil {
		return err
	}
	rec.SetEmail(u.Email)
	rec.Set("name", u.Name)
	rec.Set("photoURL", u.PhotoURL)
	rec.Set("role", string(u.Role))
	// sign-in happens through the identity provider; the local password
	// only satisfies the auth collection constraints
	rec.SetPassword(security.RandomString(32))

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*u = *userFromRecord(rec)
	return nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	rec, err := r.app.FindRecordById(CollectionUsers, id)
	if err != nil {
		return nil, notFound(err)
	}
	return userFromRecord(rec), nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	rec, err := r.app.FindAuthRecordByEmail(CollectionUsers, email)
	if err != nil {
		return nil, notFound(err)
	}
	return userFromRecord(rec), nil
}

func (r userRepo) List(_ context.Context) ([]*models.User, error) {
	recs, err := r.app.FindAllRecords(CollectionUsers)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, userFromRecord(rec))
	}
	slices.SortStableFunc(out, func(a, b *models.User) int {
		return a.Created.Compare(b.Created)
	})
	return out, nil
}

func (r userRepo) Update(ctx context.Context, u *models.User) error {
	rec, err := r.app.FindRecordById(CollectionUsers, u.ID)
	if err != nil {
		return notFound(err)
	}
	rec.Set("name", u.Name)
	rec.Set("photoURL", u.PhotoURL)
	rec.Set("role", string(u.Role))
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*u = *userFromRecord(rec)
	return nil
}

// ---------------------------------------------------------------------------

type transactionRepo struct{ app core.App }

func transactionFromRecord(r *core.Record) *models.Transaction {
	return &models.Transaction{
		ID:            r.Id,
		TransactionID: r.GetString("transactionId"),
		Amount:        money(r, "amount"),
		Currency:      r.GetString("currency"),
		TicketTitle:   r.GetString("ticketTitle"),
		TicketID:      r.GetString("ticketId"),
		BookingID:     r.GetString("bookingId"),
		BuyerEmail:    r.GetString("buyerEmail"),
		PaymentDate:   r.GetDateTime("paymentDate").Time(),
	}
}

func (r transactionRepo) Insert(ctx context.Context, t *models.Transaction) error {
	if _, err := r.FindByTransactionID(ctx, t.TransactionID); err == nil {
		return status.ErrDuplicateTransaction
	} else if !errors.Is(err, status.ErrNotFound) {
		return err
	}

	rec, err := newRecord(r.app, CollectionTransactions)
	if err != nil {
		return err
	}
	rec.Set("transactionId", t.TransactionID)
	rec.Set("amount", t.Amount.InexactFloat64())
	rec.Set("currency", t.Currency)
	rec.Set("ticketTitle", t.TicketTitle)
	rec.Set("ticketId", t.TicketID)
	rec.Set("bookingId", t.BookingID)
	rec.Set("buyerEmail", t.BuyerEmail)
	rec.Set("paymentDate", t.PaymentDate)

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	*t = *transactionFromRecord(rec)
	return nil
}

func (r transactionRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	rec, err := r.app.FindFirstRecordByFilter(
		CollectionTransactions,
		"transactionId = {:transactionId}",
		dbx.Params{"transactionId": transactionID},
	)
	if err != nil {
		return nil, notFound(err)
	}
	return transactionFromRecord(rec), nil
}

func (r transactionRepo) FindByBuyer(_ context.Context, email string) ([]*models.Transaction, error) {
	recs, err := r.app.FindRecordsByFilter(
		CollectionTransactions,
		"buyerEmail = {:email}",
		"-paymentDate",
		0,
		0,
		dbx.Params{"email": email},
	)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, transactionFromRecord(rec))
	}
	return out, nil
}

// ---------------------------------------------------------------------------

type feedbackRepo struct{ app core.App }

func (r feedbackRepo) Insert(ctx context.Context, f *models.Feedback) error {
	rec, err := newRecord(r.app, CollectionFeedback)
	if err != nil {
		return err
	}
	rec.Set("name", f.Name)
	rec.Set("email", f.Email)
	rec.Set("message", f.Message)
	rec.Set("rating", f.Rating)
	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return err
	}
	f.ID = rec.Id
	f.Created = rec.GetDateTime("created").Time()
	return nil
}

func (r feedbackRepo) List(_ context.Context) ([]*models.Feedback, error) {
	recs, err := r.app.FindRecordsByFilter(CollectionFeedback, "id != ''", "-created", 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Feedback, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &models.Feedback{
			ID:      rec.Id,
			Name:    rec.GetString("name"),
			Email:   rec.GetString("email"),
			Message: rec.GetString("message"),
			Rating:  rec.GetInt("rating"),
			Created: rec.GetDateTime("created").Time(),
		})
	}
	return out, nil
}
