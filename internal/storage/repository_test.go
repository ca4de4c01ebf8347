package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestRepo(t *testing.T, clock *fakeClock) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	repo := newTestRepo(t, clock)

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 7, FirstName: "Anna", Username: "anna"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	clock.Set(clock.Now().Add(time.Hour))
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 7, FirstName: "Other", Username: "other"}); err != nil {
		t.Fatalf("second register: %v", err)
	}

	u, err := repo.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.FirstName != "Anna" || u.Username != "anna" {
		t.Fatalf("display fields overwritten: %+v", u)
	}
	if u.Lang != core.DefaultLang || u.Currency != core.DefaultCurrency {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	if !u.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at changed: %v", u.CreatedAt)
	}

	if _, err := repo.GetUser(ctx, 8); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordTransactionUnknownUser(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now().UTC()}
	repo := newTestRepo(t, clock)

	_, err := repo.RecordTransaction(ctx, core.NewTransaction{
		UserID: 99,
		Amount: decimal.NewFromInt(10),
	})
	if !errors.Is(err, core.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if errors.Is(err, core.ErrStorage) {
		t.Fatal("referential error must not be reported as storage error")
	}

	txs, err := repo.ListTransactions(ctx, 99, core.AllTime, clock.Now())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected nothing written, got %d rows", len(txs))
	}
}

func TestRecordAndListTransactions(t *testing.T) {
	ctx := context.Background()
	commit := time.Date(2025, 3, 10, 9, 30, 0, 123456789, time.UTC)
	clock := &fakeClock{now: commit}
	repo := newTestRepo(t, clock)

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}

	inputs := []core.NewTransaction{
		{UserID: 1, Amount: decimal.RequireFromString("100.10"), IsIncome: true},
		{UserID: 1, Amount: decimal.RequireFromString("0.1"), Category: core.NewCategory("food")},
		{UserID: 1, Amount: decimal.RequireFromString("0.2"), Category: core.NewCategory(""), Currency: "USD"},
	}
	var ids []int64
	for _, in := range inputs {
		id, err := repo.RecordTransaction(ctx, in)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		ids = append(ids, id)
	}
	if !(ids[0] < ids[1] && ids[1] < ids[2]) {
		t.Fatalf("ids not increasing: %v", ids)
	}

	txs, err := repo.ListTransactions(ctx, 1, core.AllTime, commit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i, tx := range txs {
		if tx.ID != ids[i] {
			t.Fatalf("position %d: expected id %d, got %d", i, ids[i], tx.ID)
		}
		if !tx.Amount.Equal(inputs[i].Amount) {
			t.Fatalf("position %d: amount %s, want %s", i, tx.Amount, inputs[i].Amount)
		}
		if tx.Category != inputs[i].Category {
			t.Fatalf("position %d: category %+v, want %+v", i, tx.Category, inputs[i].Category)
		}
		if !tx.Date.Equal(commit) {
			t.Fatalf("position %d: date %v, want %v", i, tx.Date, commit)
		}
	}
	if txs[0].Currency != core.DefaultCurrency || txs[2].Currency != "USD" {
		t.Fatalf("unexpected currencies: %q %q", txs[0].Currency, txs[2].Currency)
	}

	got, err := repo.GetTransaction(ctx, ids[1])
	if err != nil || got.Category.Name != "food" {
		t.Fatalf("get transaction: %+v %v", got, err)
	}
	if _, err := repo.GetTransaction(ctx, 12345); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransactionsByPeriod(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{}
	repo := newTestRepo(t, clock)

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 2}); err != nil {
		t.Fatalf("register: %v", err)
	}

	record := func(user int64, at time.Time, amount string) {
		t.Helper()
		clock.Set(at)
		_, err := repo.RecordTransaction(ctx, core.NewTransaction{
			UserID:   user,
			Amount:   decimal.RequireFromString(amount),
			Category: core.NewCategory("misc"),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	record(1, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "1")
	record(1, time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC), "2")
	record(1, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), "4")
	record(1, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), "8")
	record(2, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "100")

	cases := []struct {
		period core.Period
		want   string
	}{
		{core.CurrentMonth, "1"},
		{core.LastMonth, "2"},
		{core.Last30Days, "3"},
		{core.Last12Months, "7"},
		{core.AllTime, "15"},
	}
	for _, tc := range cases {
		txs, err := repo.ListTransactions(ctx, 1, tc.period, now)
		if err != nil {
			t.Fatalf("%s: %v", tc.period, err)
		}
		stats := core.Aggregate(txs)
		if !stats.TotalExpense.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s: total %s, want %s", tc.period, stats.TotalExpense, tc.want)
		}
	}
}

func TestSetBudget(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, &fakeClock{now: time.Now()})

	b := core.Budget{UserID: 1, Category: "food", LimitAmount: decimal.NewFromInt(500)}
	if err := repo.SetBudget(ctx, b); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	b.LimitAmount = decimal.NewFromInt(700)
	if err := repo.SetBudget(ctx, b); err != nil {
		t.Fatalf("update budget: %v", err)
	}
}

func TestRegisterUserLang(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)})

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1, Lang: "en"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 2}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// The first registration wins.
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1, Lang: "ru"}); err != nil {
		t.Fatalf("register again: %v", err)
	}

	for id, want := range map[int64]string{1: "en", 2: core.DefaultLang} {
		u, err := repo.GetUser(ctx, id)
		if err != nil || u.Lang != want {
			t.Fatalf("user %d lang = %q (%v), want %q", id, u.Lang, err, want)
		}
	}
}

func TestPendingSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	repo := newTestRepo(t, clock)

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := repo.RecordTransaction(ctx, core.NewTransaction{UserID: 1, Amount: decimal.NewFromInt(int64(i + 1))})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		ids = append(ids, id)
	}

	pending, err := repo.PendingSyncTransactions(ctx, 10)
	if err != nil || len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d (%v)", len(pending), err)
	}

	if err := repo.MarkSynced(ctx, ids[0], "Sheet1!A2"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, ids[1], errors.New("quota")); err != nil {
		t.Fatalf("mark error: %v", err)
	}

	pending, err = repo.PendingSyncTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[1] || pending[1].ID != ids[2] {
		t.Fatalf("unexpected pending set: %+v", pending)
	}

	for i := 1; i < MaxSyncAttempts; i++ {
		if err := repo.MarkSyncError(ctx, ids[1], errors.New("quota")); err != nil {
			t.Fatalf("mark error: %v", err)
		}
	}
	pending, err = repo.PendingSyncTransactions(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only the untouched row pending, got %+v (%v)", pending, err)
	}

	// A late error report must not demote a synced row.
	if err := repo.MarkSyncError(ctx, ids[0], errors.New("late")); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	row, err := repo.queries.GetTransactionSync(ctx, ids[0])
	if err != nil || row.Status != "synced" {
		t.Fatalf("expected synced row, got %+v (%v)", row, err)
	}
	if ok, err := repo.IsSynced(ctx, ids[0]); err != nil || !ok {
		t.Fatalf("IsSynced(%d) = %v, %v", ids[0], ok, err)
	}
	if ok, err := repo.IsSynced(ctx, ids[2]); err != nil || ok {
		t.Fatalf("IsSynced(%d) = %v, %v", ids[2], ok, err)
	}
}

func TestClaimSync(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	repo := newTestRepo(t, clock)

	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	var ids []int64
	for i := 0; i < 2; i++ {
		id, err := repo.RecordTransaction(ctx, core.NewTransaction{UserID: 1, Amount: decimal.NewFromInt(int64(i + 1))})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		ids = append(ids, id)
	}

	if ok, err := repo.ClaimSync(ctx, ids[0]); err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	if ok, err := repo.ClaimSync(ctx, ids[0]); err != nil || ok {
		t.Fatalf("second claim = %v, %v", ok, err)
	}
	pending, err := repo.PendingSyncTransactions(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != ids[1] {
		t.Fatalf("claimed row must not be pending, got %+v (%v)", pending, err)
	}

	// An abandoned claim expires.
	clock.Set(clock.Now().Add(SyncClaimTTL + time.Second))
	pending, err = repo.PendingSyncTransactions(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected stale claim pending again, got %+v (%v)", pending, err)
	}
	if ok, err := repo.ClaimSync(ctx, ids[0]); err != nil || !ok {
		t.Fatalf("reclaim after ttl = %v, %v", ok, err)
	}
	if err := repo.MarkSynced(ctx, ids[0], "Sheet1!A2"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if ok, err := repo.ClaimSync(ctx, ids[0]); err != nil || ok {
		t.Fatalf("claim of synced row = %v, %v", ok, err)
	}

	// Failed rows are claimable until they run out of attempts.
	for i := 0; i < MaxSyncAttempts; i++ {
		if ok, err := repo.ClaimSync(ctx, ids[1]); err != nil || !ok {
			t.Fatalf("claim attempt %d = %v, %v", i+1, ok, err)
		}
		if err := repo.MarkSyncError(ctx, ids[1], errors.New("quota")); err != nil {
			t.Fatalf("mark error: %v", err)
		}
	}
	if ok, err := repo.ClaimSync(ctx, ids[1]); err != nil || ok {
		t.Fatalf("claim of exhausted row = %v, %v", ok, err)
	}
}

func TestClaimSyncIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, &fakeClock{now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)})
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, err := repo.RecordTransaction(ctx, core.NewTransaction{UserID: 1, Amount: decimal.NewFromInt(1)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimSync(ctx, id)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", winners)
	}
}

func TestStorageErrorAfterClose(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, &fakeClock{now: time.Now()})
	repo.Close()

	_, err := repo.ListTransactions(ctx, 1, core.AllTime, time.Now())
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if err := repo.Ping(ctx); !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected ErrStorage from ping, got %v", err)
	}
}

func TestConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, &fakeClock{now: time.Now().UTC()})
	if err := repo.RegisterUser(ctx, core.NewUser{ID: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordTransaction(ctx, core.NewTransaction{UserID: 1, Amount: decimal.NewFromInt(1)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent record: %v", err)
		}
	}

	txs, err := repo.ListTransactions(ctx, 1, core.AllTime, time.Now())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != n {
		t.Fatalf("expected %d rows, got %d", n, len(txs))
	}
	if !core.Aggregate(txs).TotalExpense.Equal(decimal.NewFromInt(n)) {
		t.Fatal("sum mismatch")
	}
}
