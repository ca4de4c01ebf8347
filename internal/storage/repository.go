package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finbot/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// MaxSyncAttempts bounds how often a failing mirror row is retried.
const MaxSyncAttempts = 5

// SyncClaimTTL is how long a claim on a transaction blocks other mirror
// attempts. A claim older than this is treated as abandoned.
const SyncClaimTTL = 5 * time.Minute

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the durable ledger. Every method is safe for
// concurrent use; writes are single statements or one SQL transaction.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	clock   func() time.Time
}

type Option func(*SQLiteRepository)

// WithClock replaces the commit clock. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(r *SQLiteRepository) { r.clock = clock }
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// RegisterUser creates the user if absent. Existing rows are never touched.
func (r *SQLiteRepository) RegisterUser(ctx context.Context, u core.NewUser) error {
	lang := u.Lang
	if lang == "" {
		lang = core.DefaultLang
	}
	err := r.queries.CreateUser(ctx, CreateUserParams{
		UserID:    u.ID,
		FirstName: nullString(u.FirstName),
		Username:  nullString(u.Username),
		Lang:      lang,
		CreatedAt: formatTime(r.clock()),
	})
	if err != nil {
		return storageErr("register user", err)
	}
	slog.DebugContext(ctx, "User registered", "user_id", u.ID)
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("get user %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, storageErr("get user", err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.User{}, storageErr("get user", err)
	}
	return core.User{
		ID:        row.UserID,
		FirstName: row.FirstName.String,
		Username:  row.Username.String,
		Lang:      row.Lang,
		Currency:  row.Currency,
		CreatedAt: createdAt,
	}, nil
}

// RecordTransaction appends one transaction dated by the store clock and
// returns its id. An unregistered user yields core.ErrUnknownUser and
// nothing is written.
func (r *SQLiteRepository) RecordTransaction(ctx context.Context, t core.NewTransaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	exists, err := q.UserExists(ctx, t.UserID)
	if err != nil {
		return 0, storageErr("check user", err)
	}
	if !exists {
		return 0, fmt.Errorf("record transaction for user %d: %w", t.UserID, core.ErrUnknownUser)
	}

	var isIncome int64
	if t.IsIncome {
		isIncome = 1
	}
	id, err := q.CreateTransaction(ctx, CreateTransactionParams{
		UserID:   t.UserID,
		Amount:   t.Amount.String(),
		Category: sql.NullString{String: t.Category.Name, Valid: t.Category.Valid},
		IsIncome: isIncome,
		Currency: t.CurrencyOrDefault(),
		Date:     formatTime(r.clock()),
	})
	if err != nil {
		return 0, storageErr("record transaction", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit transaction", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"user_id", t.UserID,
		"is_income", t.IsIncome)
	return id, nil
}

// ListTransactions returns the user's transactions inside period, in
// insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, period core.Period, now time.Time) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	keep := period.Filter(now)
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toCore(row)
		if err != nil {
			return nil, storageErr("list transactions", err)
		}
		if keep(t.Date) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, storageErr("get transaction", err)
	}
	t, err := toCore(row)
	if err != nil {
		return core.Transaction{}, storageErr("get transaction", err)
	}
	return t, nil
}

// SetBudget stores a spending limit. Limits are kept but not enforced.
func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) error {
	err := r.queries.UpsertBudget(ctx, Budget{
		UserID:      b.UserID,
		Category:    b.Category,
		LimitAmount: b.LimitAmount.String(),
	})
	if err != nil {
		return storageErr("set budget", err)
	}
	return nil
}

// PendingSyncTransactions returns transactions not yet mirrored, oldest
// first. Rows that failed MaxSyncAttempts times and rows under a live claim
// are left out.
func (r *SQLiteRepository) PendingSyncTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListPendingSync(ctx, ListPendingSyncParams{
		MaxAttempts: MaxSyncAttempts,
		StaleBefore: r.clock().Add(-SyncClaimTTL).Unix(),
		Limit:       int64(limit),
	})
	if err != nil {
		return nil, storageErr("get pending sync transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toCore(row)
		if err != nil {
			return nil, storageErr("get pending sync transactions", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ClaimSync takes ownership of mirroring transaction id. It returns false
// when the row is already synced, has exhausted its attempts, or is
// claimed by another caller within SyncClaimTTL.
func (r *SQLiteRepository) ClaimSync(ctx context.Context, id int64) (bool, error) {
	now := r.clock()
	n, err := r.queries.ClaimSync(ctx, ClaimSyncParams{
		TransactionID: id,
		ClaimedAt:     now.Unix(),
		UpdatedAt:     formatTime(now),
		MaxAttempts:   MaxSyncAttempts,
		StaleBefore:   now.Add(-SyncClaimTTL).Unix(),
	})
	if err != nil {
		return false, storageErr("claim transaction sync", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, sheetRef string) error {
	err := r.queries.MarkSynced(ctx, MarkSyncedParams{
		TransactionID: id,
		SheetRef:      nullString(sheetRef),
		UpdatedAt:     formatTime(r.clock()),
	})
	if err != nil {
		return storageErr("mark transaction synced", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "sheet_ref", sheetRef)
	return nil
}

// MarkSyncError records a failed mirror attempt. A row already synced
// stays synced.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, cause error) error {
	var msg sql.NullString
	if cause != nil {
		msg = nullString(cause.Error())
	}
	err := r.queries.MarkSyncError(ctx, MarkSyncErrorParams{
		TransactionID: id,
		LastError:     msg,
		UpdatedAt:     formatTime(r.clock()),
	})
	if err != nil {
		return storageErr("mark transaction sync error", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "error", cause)
	return nil
}

// IsSynced reports whether the transaction has been mirrored.
func (r *SQLiteRepository) IsSynced(ctx context.Context, id int64) (bool, error) {
	row, err := r.queries.GetTransactionSync(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get transaction sync", err)
	}
	return row.Status == "synced", nil
}

func toCore(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of transaction %d: %w", row.ID, err)
	}
	date, err := parseTime(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date of transaction %d: %w", row.ID, err)
	}
	var cat core.Category
	if row.Category.Valid {
		cat = core.NewCategory(row.Category.String)
	}
	return core.Transaction{
		ID:       row.ID,
		UserID:   row.UserID,
		Amount:   amount,
		Category: cat,
		IsIncome: row.IsIncome != 0,
		Currency: row.Currency,
		Date:     date,
	}, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorage, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
