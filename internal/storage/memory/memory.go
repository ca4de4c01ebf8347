// Package memory is an in-process ledger used for tests and local runs.
// It honours the same contract as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finbot/internal/core"
)

type Store struct {
	mu      sync.Mutex
	clock   func() time.Time
	users   map[int64]core.User
	items   []core.Transaction
	budgets map[budgetKey]core.Budget
	synced  map[int64]string
	claims  map[int64]time.Time
	nextID  int64
}

// ClaimTTL is how long a claim blocks other mirror attempts.
const ClaimTTL = 5 * time.Minute

type budgetKey struct {
	user     int64
	category string
}

type Option func(*Store)

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:   time.Now,
		users:   map[int64]core.User{},
		budgets: map[budgetKey]core.Budget{},
		synced:  map[int64]string{},
		claims:  map[int64]time.Time{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RegisterUser(_ context.Context, u core.NewUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return nil
	}
	lang := u.Lang
	if lang == "" {
		lang = core.DefaultLang
	}
	s.users[u.ID] = core.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		Username:  u.Username,
		Lang:      lang,
		Currency:  core.DefaultCurrency,
		CreatedAt: s.clock().UTC(),
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) RecordTransaction(_ context.Context, t core.NewTransaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[t.UserID]; !ok {
		return 0, fmt.Errorf("record transaction for user %d: %w", t.UserID, core.ErrUnknownUser)
	}
	s.nextID++
	s.items = append(s.items, core.Transaction{
		ID:       s.nextID,
		UserID:   t.UserID,
		Amount:   t.Amount,
		Category: t.Category,
		IsIncome: t.IsIncome,
		Currency: t.CurrencyOrDefault(),
		Date:     s.clock().UTC(),
	})
	return s.nextID, nil
}

func (s *Store) ListTransactions(_ context.Context, userID int64, period core.Period, now time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := period.Filter(now)
	out := []core.Transaction{}
	for _, t := range s.items {
		if t.UserID == userID && keep(t.Date) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// ids are dense and start at 1
	if id < 1 || id > int64(len(s.items)) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, core.ErrNotFound)
	}
	return s.items[id-1], nil
}

func (s *Store) SetBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budgetKey{b.UserID, b.Category}] = b
	return nil
}

// PendingSyncTransactions returns transactions never marked as synced and
// not under a live claim. Errors are not counted here; every unsynced row
// stays pending.
func (s *Store) PendingSyncTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var out []core.Transaction
	for _, t := range s.items {
		if len(out) >= limit {
			break
		}
		if _, ok := s.synced[t.ID]; ok || s.claimedLocked(t.ID, now) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ClaimSync takes ownership of mirroring transaction id.
func (s *Store) ClaimSync(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if _, ok := s.synced[id]; ok || s.claimedLocked(id, now) {
		return false, nil
	}
	s.claims[id] = now
	return true, nil
}

func (s *Store) claimedLocked(id int64, now time.Time) bool {
	at, ok := s.claims[id]
	return ok && now.Sub(at) < ClaimTTL
}

func (s *Store) MarkSynced(_ context.Context, id int64, sheetRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[id] = sheetRef
	delete(s.claims, id)
	return nil
}

func (s *Store) IsSynced(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.synced[id]
	return ok, nil
}

// MarkSyncError releases the claim so the row is pending again. No attempt
// count is kept.
func (s *Store) MarkSyncError(_ context.Context, id int64, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
