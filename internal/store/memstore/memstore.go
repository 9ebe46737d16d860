// Package memstore is an in-memory implementation of store.Store used by
// the service and handler tests.
//
// Transactions are serialized and rolled back by restoring a snapshot taken
// when the transaction started. Writes made outside a transaction while
// another one is running are lost on rollback, which is acceptable for a
// test double.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type (
	state struct {
		tickets      map[string]models.Ticket
		ticketOrder  []string
		bookings     map[string]models.Booking
		bookingOrder []string
		users        map[string]models.User
		userOrder    []string
		transactions map[string]models.Transaction
		feedback     []models.Feedback
	}

	db struct {
		mu   sync.Mutex
		txMu sync.Mutex
		data *state
		now  func() time.Time
	}

	Store struct {
		db   *db
		inTx bool
	}
)

// New returns an empty store.
func New() *Store {
	return &Store{db: &db{data: newState(), now: time.Now}}
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.now = now
}

func newState() *state {
	return &state{
		tickets:      map[string]models.Ticket{},
		bookings:     map[string]models.Booking{},
		users:        map[string]models.User{},
		transactions: map[string]models.Transaction{},
	}
}

func (st *state) clone() *state {
	c := &state{
		tickets:      make(map[string]models.Ticket, len(st.tickets)),
		ticketOrder:  slices.Clone(st.ticketOrder),
		bookings:     make(map[string]models.Booking, len(st.bookings)),
		bookingOrder: slices.Clone(st.bookingOrder),
		users:        make(map[string]models.User, len(st.users)),
		userOrder:    slices.Clone(st.userOrder),
		transactions: make(map[string]models.Transaction, len(st.transactions)),
		feedback:     slices.Clone(st.feedback),
	}
	for k, v := range st.tickets {
		v.Perks = slices.Clone(v.Perks)
		c.tickets[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	return c
}

func (s *Store) Tickets() store.TicketRepository           { return ticketRepo{s.db} }
func (s *Store) Bookings() store.BookingRepository         { return bookingRepo{s.db} }
func (s *Store) Users() store.UserRepository               { return userRepo{s.db} }
func (s *Store) Transactions() store.TransactionRepository { return transactionRepo{s.db} }
func (s *Store) Feedback() store.FeedbackRepository        { return feedbackRepo{s.db} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.Lock()
	snapshot := s.db.data.clone()
	s.db.mu.Unlock()

	err := fn(&Store{db: s.db, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
	}
	return err
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// ---------------------------------------------------------------------------

type ticketRepo struct{ db *db }

func (r ticketRepo) Insert(_ context.Context, t *models.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t.ID = newID()
	t.Created = r.db.now()
	t.Updated = t.Created
	c := *t
	c.Perks = slices.Clone(t.Perks)
	r.db.data.tickets[t.ID] = c
	r.db.data.ticketOrder = append(r.db.data.ticketOrder, t.ID)
	return nil
}

func (r ticketRepo) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.data.tickets[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	t.Perks = slices.Clone(t.Perks)
	return &t, nil
}

func matchTicket(t *models.Ticket, q store.TicketQuery) bool {
	if q.VisibleOnly && !t.Visible() {
		return false
	}
	if q.Advertised != nil && t.Advertised != *q.Advertised {
		return false
	}
	if q.VendorEmail != "" && t.VendorEmail != q.VendorEmail {
		return false
	}
	return true
}

func (r ticketRepo) Find(_ context.Context, q store.TicketQuery) ([]*models.Ticket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	order := slices.Clone(r.db.data.ticketOrder)
	if strings.HasPrefix(q.Sort, "-") {
		slices.Reverse(order)
	}

	out := []*models.Ticket{}
	for _, id := range order {
		t := r.db.data.tickets[id]
		if !matchTicket(&t, q) {
			continue
		}
		t.Perks = slices.Clone(t.Perks)
		out = append(out, &t)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (r ticketRepo) Count(ctx context.Context, q store.TicketQuery) (int, error) {
	q.Limit = 0
	found, err := r.Find(ctx, q)
	return len(found), err
}

func (r ticketRepo) Update(_ context.Context, t *models.Ticket) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.data.tickets[t.ID]
	if !ok {
		return status.ErrNotFound
	}
	t.Created = existing.Created
	t.Updated = r.db.now()
	c := *t
	c.Perks = slices.Clone(t.Perks)
	r.db.data.tickets[t.ID] = c
	return nil
}

func (r ticketRepo) Delete(_ context.Context, id string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.data.tickets[id]; !ok {
		return 0, nil
	}
	delete(r.db.data.tickets, id)
	r.db.data.ticketOrder = slices.DeleteFunc(r.db.data.ticketOrder, func(v string) bool { return v == id })
	return 1, nil
}

func (r ticketRepo) HideByVendor(_ context.Context, vendorEmail string) (store.UpdateResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var res store.UpdateResult
	for _, id := range r.db.data.ticketOrder {
		t := r.db.data.tickets[id]
		if t.VendorEmail != vendorEmail {
			continue
		}
		res.MatchedCount++
		if t.IsHiddenByAdmin && t.Status == models.TicketRejected {
			continue
		}
		t.IsHiddenByAdmin = true
		t.Status = models.TicketRejected
		t.Updated = r.db.now()
		r.db.data.tickets[id] = t
		res.ModifiedCount++
	}
	return res, nil
}

func (r ticketRepo) DecrementQuantity(_ context.Context, id string, n int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.data.tickets[id]
	if !ok {
		return 0, status.ErrNotFound
	}
	t.Quantity = max(t.Quantity-n, 0)
	t.Updated = r.db.now()
	r.db.data.tickets[id] = t
	return t.Quantity, nil
}

// ---------------------------------------------------------------------------

type bookingRepo struct{ db *db }

func (r bookingRepo) Insert(_ context.Context, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b.ID = newID()
	b.Created = r.db.now()
	r.db.data.bookings[b.ID] = *b
	r.db.data.bookingOrder = append(r.db.data.bookingOrder, b.ID)
	return nil
}

func (r bookingRepo) FindByID(_ context.Context, id string) (*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	b, ok := r.db.data.bookings[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	return &b, nil
}

func (r bookingRepo) Find(_ context.Context, q store.BookingQuery) ([]*models.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := []*models.Booking{}
	for _, id := range r.db.data.bookingOrder {
		b := r.db.data.bookings[id]
		if q.BuyerEmail != "" && b.BuyerEmail != q.BuyerEmail {
			continue
		}
		if q.VendorEmail != "" && b.VendorEmail != q.VendorEmail {
			continue
		}
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		out = append(out, &b)
	}
	return out, nil
}

func (r bookingRepo) Update(_ context.Context, b *models.Booking) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.data.bookings[b.ID]
	if !ok {
		return status.ErrNotFound
	}
	b.Created = existing.Created
	r.db.data.bookings[b.ID] = *b
	return nil
}

// ---------------------------------------------------------------------------

type userRepo struct{ db *db }

func (r userRepo) Insert(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return status.ErrDuplicateEmail
		}
	}
	u.ID = newID()
	u.Created = r.db.now()
	r.db.data.users[u.ID] = *u
	r.db.data.userOrder = append(r.db.data.userOrder, u.ID)
	return nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.data.users[id]
	if !ok {
		return nil, status.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.data.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, status.ErrNotFound
}

func (r userRepo) List(_ context.Context) ([]*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]*models.User, 0, len(r.db.data.userOrder))
	for _, id := range r.db.data.userOrder {
		u := r.db.data.users[id]
		out = append(out, &u)
	}
	return out, nil
}

func (r userRepo) Update(_ context.Context, u *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	existing, ok := r.db.data.users[u.ID]
	if !ok {
		return status.ErrNotFound
	}
	u.Created = existing.Created
	r.db.data.users[u.ID] = *u
	return nil
}

// ---------------------------------------------------------------------------

type transactionRepo struct{ db *db }

func (r transactionRepo) Insert(_ context.Context, t *models.Transaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.data.transactions {
		if existing.TransactionID == t.TransactionID {
			return status.ErrDuplicateTransaction
		}
	}
	t.ID = newID()
	r.db.data.transactions[t.ID] = *t
	return nil
}

func (r transactionRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, t := range r.db.data.transactions {
		if t.TransactionID == transactionID {
			return &t, nil
		}
	}
	return nil, status.ErrNotFound
}

func (r transactionRepo) FindByBuyer(_ context.Context, email string) ([]*models.Transaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := []*models.Transaction{}
	for _, t := range r.db.data.transactions {
		if t.BuyerEmail == email {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *models.Transaction) int {
		return b.PaymentDate.Compare(a.PaymentDate)
	})
	return out, nil
}

// ---------------------------------------------------------------------------

type feedbackRepo struct{ db *db }

func (r feedbackRepo) Insert(_ context.Context, f *models.Feedback) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	f.ID = newID()
	f.Created = r.db.now()
	r.db.data.feedback = append(r.db.data.feedback, *f)
	return nil
}

func (r feedbackRepo) List(_ context.Context) ([]*models.Feedback, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	out := make([]*models.Feedback, 0, len(r.db.data.feedback))
	for i := len(r.db.data.feedback) - 1; i >= 0; i-- {
		f := r.db.data.feedback[i]
		out = append(out, &f)
	}
	return out, nil
}
