package backend

import (
	"context"
	"time"

	"finbot/internal/core"
)

// Ledger is the full store contract shared by the SQLite and in-memory
// implementations.
type Ledger interface {
	RegisterUser(ctx context.Context, u core.NewUser) error
	GetUser(ctx context.Context, id int64) (core.User, error)
	RecordTransaction(ctx context.Context, t core.NewTransaction) (int64, error)
	ListTransactions(ctx context.Context, userID int64, period core.Period, now time.Time) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	SetBudget(ctx context.Context, b core.Budget) error

	PendingSyncTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id int64, sheetRef string) error
	MarkSyncError(ctx context.Context, id int64, cause error) error
	IsSynced(ctx context.Context, id int64) (bool, error)
	ClaimSync(ctx context.Context, id int64) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger instance and its cleanup function
type BackendResult struct {
	Ledger  Ledger
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
