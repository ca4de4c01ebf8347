package backend

import (
	"fmt"
	"log/slog"

	"finbot/internal/storage"
	"finbot/internal/storage/memory"
)

// Factory creates ledgers based on configuration
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateLedger opens the ledger selected by config.
func (f *Factory) CreateLedger(config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite ledger", "db_path", config.SQLiteDBPath)
		return &BackendResult{Ledger: repo, Cleanup: repo.Close}, nil
	case MemoryBackend:
		store := memory.New()
		f.logger.Info("Initialized memory ledger")
		return &BackendResult{Ledger: store, Cleanup: store.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
