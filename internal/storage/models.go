package storage

import "database/sql"

// Row types mirror the tables in migrations/. Amounts are stored as exact
// decimal text and timestamps as RFC 3339 UTC text.

type User struct {
	UserID    int64
	FirstName sql.NullString
	Username  sql.NullString
	Lang      string
	Currency  string
	CreatedAt string
}

type Transaction struct {
	ID       int64
	UserID   int64
	Amount   string
	Category sql.NullString
	IsIncome int64
	Currency string
	Date     string
}

type Budget struct {
	UserID      int64
	Category    string
	LimitAmount string
}

type TransactionSync struct {
	TransactionID int64
	Status        string
	SheetRef      sql.NullString
	LastError     sql.NullString
	Attempts      int64
	UpdatedAt     string
}
