// Package cli provides the initialization steps shared by cmd/finbot and
// cmd/finbot-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finbot/internal/backend"
	"finbot/internal/config"
	"finbot/internal/log"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging at the given level and sets
// it as the default logger. Unknown levels fall back to info.
func SetupLogger(level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.NewText(os.Stdout, lvl)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and runs the given
// process-specific validation. It exits the process on failure.
func LoadAndValidateConfig(logger *slog.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenLedger opens the configured ledger backend or exits the process.
func OpenLedger(logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateLedger(bc)
	if err != nil {
		logger.Error("Failed to open ledger", "error", err, "backend", bc.Type)
		os.Exit(1)
	}
	return result
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or a call
// to the returned shutdown func. After cancellation cleanup runs with a
// context bounded by timeout; the returned channel closes when it has
// finished.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, context.CancelFunc, <-chan struct{}) {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(sigCtx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutting down", "reason", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, cancel, done
}
