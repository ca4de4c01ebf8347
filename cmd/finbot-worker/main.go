package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cli"
	"finbot/internal/config"
	apphttp "finbot/internal/http"
	"finbot/internal/services"
	gsheet "finbot/internal/sheets/google"
	"finbot/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting finbot-worker")

	ledgerResult := cli.OpenLedger(logger, cfg)
	defer func() {
		if err := ledgerResult.Cleanup(); err != nil {
			logger.Error("Failed to close ledger", "error", err)
		}
	}()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(ledgerResult.Ledger, sheetsClient, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{PollInterval: cfg.SyncInterval})

	health := apphttp.NewServer(":" + cfg.HealthPort)
	health.AddCheck("ledger", ledgerResult.Ledger)

	ctx, shutdown, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
		if err := health.Shutdown(ctx); err != nil {
			logger.Error("Health server shutdown error", "error", err)
		}
	})

	go func() {
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err, "port", cfg.HealthPort)
		}
	}()

	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to prepare sheet header", "error", err)
	}

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		shutdown()
		<-done
		return
	}

	if err := amqpClient.ConsumeTransactionRecorded(ctx, syncWorker.HandleTransactionRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
	}

	shutdown()
	<-done
	logger.Info("Worker shutdown complete")
}
