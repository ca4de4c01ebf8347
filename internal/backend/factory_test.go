package backend

import (
	"path/filepath"
	"testing"

	"finbot/internal/config"
	"finbot/internal/storage"
	"finbot/internal/storage/memory"
)

var (
	_ Ledger = (*storage.SQLiteRepository)(nil)
	_ Ledger = (*memory.Store)(nil)
)

func TestCreateLedger(t *testing.T) {
	f := NewFactory(nil)

	res, err := f.CreateLedger(Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := res.Ledger.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", res.Ledger)
	}

	res, err = f.CreateLedger(Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "l.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer res.Cleanup()
	if _, ok := res.Ledger.(*storage.SQLiteRepository); !ok {
		t.Fatalf("expected sqlite repository, got %T", res.Ledger)
	}

	if _, err := f.CreateLedger(Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := f.CreateLedger(Config{Type: "sheets"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil || cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Fatalf("unexpected %+v %v", cfg, err)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
