// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-access-platform/internal/domain"
	"course-access-platform/internal/domain/model"
	"course-access-platform/internal/domain/ports/adapter"
	"course-access-platform/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays
// readable.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fakeClock is a manually advanced clock for deterministic day math.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ---- In-memory OrderRepository ----

type memOrderRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Order
	SaveFunc func(ctx context.Context, tx repository.Tx, o *model.Order) error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{store: make(map[string]*model.Order)}
}

var _ repository.OrderRepository = (*memOrderRepo)(nil)

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.put(o)
	return nil
}

func (m *memOrderRepo) put(o *model.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
}

// sortedByCreatedDesc returns all orders newest first for deterministic
// "most recent" semantics.
func (m *memOrderRepo) sortedByCreatedDesc() []*model.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Order, 0, len(m.store))
	for _, o := range m.store {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.PaymentID != nil && *o.PaymentID == paymentID {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindPendingByUserLevel(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.LevelID == levelID && o.PaymentStatus == model.PaymentStatusPending {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindPendingByUserAmount(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.Amount == amount && o.PaymentStatus == model.PaymentStatusPending {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindMostRecentPending(ctx context.Context, tx repository.Tx, userID string) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.PaymentStatus == model.PaymentStatusPending {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindByUserAmount(ctx context.Context, tx repository.Tx, userID string, amount int64) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.Amount == amount {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindActiveCompleted(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.LevelID == levelID && o.HasActiveAccess() {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) FindMostRecent(ctx context.Context, tx repository.Tx, userID, levelID string) (*model.Order, error) {
	for _, o := range m.sortedByCreatedDesc() {
		if o.UserID == userID && o.LevelID == levelID {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memOrderRepo) MarkExpiredCutoff(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.store {
		if o.PaymentStatus == model.PaymentStatusCompleted &&
			o.AccessStatus == model.AccessStatusActive &&
			o.AccessExpiresAt != nil && o.AccessExpiresAt.Before(cutoff) {
			o.AccessStatus = model.AccessStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memOrderRepo) DeletePendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, o := range m.store {
		if o.PaymentStatus == model.PaymentStatusPending && o.CreatedAt.Before(cutoff) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

func (m *memOrderRepo) Search(ctx context.Context, tx repository.Tx, f repository.OrderFilter) ([]*model.Order, int, error) {
	var matched []*model.Order
	for _, o := range m.sortedByCreatedDesc() {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.PaymentID != "" && (o.PaymentID == nil || *o.PaymentID != f.PaymentID) {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if !f.PaidFrom.IsZero() && (o.PaymentDate == nil || o.PaymentDate.Before(f.PaidFrom)) {
			continue
		}
		if !f.PaidTo.IsZero() && (o.PaymentDate == nil || !o.PaymentDate.Before(f.PaidTo)) {
			continue
		}
		matched = append(matched, o)
	}
	total := len(matched)
	if f.Limit > 0 {
		start := f.Offset
		if start > total {
			start = total
		}
		end := start + f.Limit
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// ---- In-memory UserRepository ----

type memUserRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.User
	SaveFunc func(ctx context.Context, tx repository.Tx, u *model.User) error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.put(u)
	return nil
}

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	cp.PauseHistory = append([]model.PauseRecord(nil), u.PauseHistory...)
	m.store[u.ID] = &cp
}

func (m *memUserRepo) get(id string) (*model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, false
	}
	cp := *u
	cp.PauseHistory = append([]model.PauseRecord(nil), u.PauseHistory...)
	return &cp, true
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if u, ok := m.get(id); ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) ListInactiveSince(ctx context.Context, tx repository.Tx, cutoff time.Time, offset, limit int) ([]*model.User, error) {
	m.mu.RLock()
	var all []*model.User
	for _, u := range m.store {
		if u.Role != model.RoleAdmin && u.IsVerified && u.Status == model.UserStatusActive && u.LastActivity.Before(cutoff) {
			cp := *u
			all = append(all, &cp)
		}
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].LastActivity.Before(all[j].LastActivity) })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memUserRepo) ListPauseEndedBefore(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.User
	for _, u := range m.store {
		if u.IsVoluntaryPaused && u.PauseScheduledEndDate != nil && !u.PauseScheduledEndDate.After(now) {
			cp := *u
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- Mock TransactionManager ----

type mockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*mockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless a test overrides it.
func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock PaymentGateway ----

type mockGateway struct {
	CreateIntentionFunc   func(ctx context.Context, req adapter.CheckoutRequest) (string, error)
	VerifyTransactionFunc func(ctx context.Context, paymentID string) (adapter.TransactionStatus, error)
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) CreateIntention(ctx context.Context, req adapter.CheckoutRequest) (string, error) {
	if m.CreateIntentionFunc != nil {
		return m.CreateIntentionFunc(ctx, req)
	}
	return "https://checkout.example/session", nil
}

func (m *mockGateway) VerifyTransaction(ctx context.Context, paymentID string) (adapter.TransactionStatus, error) {
	if m.VerifyTransactionFunc != nil {
		return m.VerifyTransactionFunc(ctx, paymentID)
	}
	return adapter.TransactionStatus{PaymentID: paymentID, Success: true}, nil
}

// ---- Mock MailGateway ----

type sentMail struct {
	To     string
	Kind   adapter.MailKind
	Params map[string]string
}

type mockMailer struct {
	mu   sync.Mutex
	Sent []sentMail
	Err  error
}

var _ adapter.MailGateway = (*mockMailer)(nil)

func (m *mockMailer) Send(ctx context.Context, to string, kind adapter.MailKind, params map[string]string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMail{To: to, Kind: kind, Params: params})
	return nil
}

func (m *mockMailer) kinds() []adapter.MailKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.MailKind, 0, len(m.Sent))
	for _, s := range m.Sent {
		out = append(out, s.Kind)
	}
	return out
}
