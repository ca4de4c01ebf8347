package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUser = `
INSERT INTO users (user_id, first_name, username, lang, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO NOTHING
`

type CreateUserParams struct {
	UserID    int64
	FirstName sql.NullString
	Username  sql.NullString
	Lang      string
	CreatedAt string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.UserID, arg.FirstName, arg.Username, arg.Lang, arg.CreatedAt)
	return err
}

const getUser = `
SELECT user_id, first_name, username, lang, currency, created_at
FROM users
WHERE user_id = ?
`

func (q *Queries) GetUser(ctx context.Context, userID int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, userID)
	var i User
	err := row.Scan(&i.UserID, &i.FirstName, &i.Username, &i.Lang, &i.Currency, &i.CreatedAt)
	return i, err
}

const userExists = `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = ?)`

func (q *Queries) UserExists(ctx context.Context, userID int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, userExists, userID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const createTransaction = `
INSERT INTO transactions (user_id, amount, category, is_income, currency, date)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateTransactionParams struct {
	UserID   int64
	Amount   string
	Category sql.NullString
	IsIncome int64
	Currency string
	Date     string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID, arg.Amount, arg.Category, arg.IsIncome, arg.Currency, arg.Date)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getTransaction = `
SELECT id, user_id, amount, category, is_income, currency, date
FROM transactions
WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i Transaction
	err := row.Scan(&i.ID, &i.UserID, &i.Amount, &i.Category, &i.IsIncome, &i.Currency, &i.Date)
	return i, err
}

const listTransactionsByUser = `
SELECT id, user_id, amount, category, is_income, currency, date
FROM transactions
WHERE user_id = ?
ORDER BY id
`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const listPendingSync = `
SELECT t.id, t.user_id, t.amount, t.category, t.is_income, t.currency, t.date
FROM transactions t
LEFT JOIN transaction_sync s ON s.transaction_id = t.id
WHERE s.transaction_id IS NULL
   OR (s.status = 'error' AND s.attempts < ?)
   OR (s.status = 'processing' AND s.claimed_at < ?)
ORDER BY t.id
LIMIT ?
`

type ListPendingSyncParams struct {
	MaxAttempts int64
	StaleBefore int64
	Limit       int64
}

func (q *Queries) ListPendingSync(ctx context.Context, arg ListPendingSyncParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSync, arg.MaxAttempts, arg.StaleBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

const upsertBudget = `
INSERT INTO budgets (user_id, category, limit_amount)
VALUES (?, ?, ?)
ON CONFLICT (user_id, category) DO UPDATE SET limit_amount = excluded.limit_amount
`

func (q *Queries) UpsertBudget(ctx context.Context, arg Budget) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, arg.UserID, arg.Category, arg.LimitAmount)
	return err
}

const markSynced = `
INSERT INTO transaction_sync (transaction_id, status, sheet_ref, last_error, attempts, updated_at)
VALUES (?, 'synced', ?, NULL, 1, ?)
ON CONFLICT (transaction_id) DO UPDATE SET
    status = 'synced',
    sheet_ref = excluded.sheet_ref,
    last_error = NULL,
    attempts = transaction_sync.attempts + 1,
    updated_at = excluded.updated_at
`

type MarkSyncedParams struct {
	TransactionID int64
	SheetRef      sql.NullString
	UpdatedAt     string
}

func (q *Queries) MarkSynced(ctx context.Context, arg MarkSyncedParams) error {
	_, err := q.db.ExecContext(ctx, markSynced, arg.TransactionID, arg.SheetRef, arg.UpdatedAt)
	return err
}

const markSyncError = `
INSERT INTO transaction_sync (transaction_id, status, last_error, attempts, updated_at)
VALUES (?, 'error', ?, 1, ?)
ON CONFLICT (transaction_id) DO UPDATE SET
    status = 'error',
    last_error = excluded.last_error,
    attempts = transaction_sync.attempts + 1,
    updated_at = excluded.updated_at
WHERE transaction_sync.status <> 'synced'
`

type MarkSyncErrorParams struct {
	TransactionID int64
	LastError     sql.NullString
	UpdatedAt     string
}

func (q *Queries) MarkSyncError(ctx context.Context, arg MarkSyncErrorParams) error {
	_, err := q.db.ExecContext(ctx, markSyncError, arg.TransactionID, arg.LastError, arg.UpdatedAt)
	return err
}

const claimSync = `
INSERT INTO transaction_sync (transaction_id, status, attempts, claimed_at, updated_at)
VALUES (?, 'processing', 0, ?, ?)
ON CONFLICT (transaction_id) DO UPDATE SET
    status = 'processing',
    claimed_at = excluded.claimed_at,
    updated_at = excluded.updated_at
WHERE (transaction_sync.status = 'error' AND transaction_sync.attempts < ?)
   OR (transaction_sync.status = 'processing' AND transaction_sync.claimed_at < ?)
`

type ClaimSyncParams struct {
	TransactionID int64
	ClaimedAt     int64
	UpdatedAt     string
	MaxAttempts   int64
	StaleBefore   int64
}

// ClaimSync reports the number of rows claimed: 1 when the caller owns the
// transaction, 0 when it is synced, exhausted or claimed by someone else.
func (q *Queries) ClaimSync(ctx context.Context, arg ClaimSyncParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimSync,
		arg.TransactionID, arg.ClaimedAt, arg.UpdatedAt, arg.MaxAttempts, arg.StaleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getTransactionSync = `
SELECT transaction_id, status, sheet_ref, last_error, attempts, updated_at
FROM transaction_sync
WHERE transaction_id = ?
`

func (q *Queries) GetTransactionSync(ctx context.Context, transactionID int64) (TransactionSync, error) {
	row := q.db.QueryRowContext(ctx, getTransactionSync, transactionID)
	var i TransactionSync
	err := row.Scan(&i.TransactionID, &i.Status, &i.SheetRef, &i.LastError, &i.Attempts, &i.UpdatedAt)
	return i, err
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.UserID, &i.Amount, &i.Category, &i.IsIncome, &i.Currency, &i.Date); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
