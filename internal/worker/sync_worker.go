// Package worker mirrors committed transactions into the external sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/sheets"
)

// Store is the slice of the ledger the worker reads and annotates.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	IsSynced(ctx context.Context, id int64) (bool, error)
	ClaimSync(ctx context.Context, id int64) (bool, error)
	PendingSyncTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id int64, sheetRef string) error
	MarkSyncError(ctx context.Context, id int64, cause error) error
}

// SyncWorker handles synchronization of transactions from the ledger to
// Google Sheets.
type SyncWorker struct {
	store     Store
	sheets    sheets.TransactionAppender
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store Store, sheets sheets.TransactionAppender, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		sheets:    sheets,
		batchSize: batchSize,
		logger:    log.ForComponent(nil, log.ComponentWorker),
	}
}

// HandleTransactionRecorded processes one transaction.recorded message.
// Only ledger failures are returned, so the message is redelivered; a
// failed append is recorded and left to the pending sweep.
func (w *SyncWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing transaction message",
		log.FieldTransactionID, msg.TransactionID,
		log.FieldUserID, msg.UserID,
		"message_id", msg.MessageID)

	synced, err := w.store.IsSynced(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("check sync status: %w", err)
	}
	if synced {
		w.logger.DebugContext(ctx, "Transaction already mirrored", log.FieldTransactionID, msg.TransactionID)
		return nil
	}

	t, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Dropping message for unknown transaction", log.FieldTransactionID, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if _, err := w.mirror(ctx, t); err != nil && errors.Is(err, core.ErrStorage) {
		return err
	}
	return nil
}

// ProcessPending mirrors one batch of transactions that have no sync
// record. This is the backup path for lost messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch once at startup to recover from
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSyncTransactions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		appended, err := w.mirror(ctx, t)
		if err != nil || !appended {
			continue
		}
		synced++
	}
	return synced, nil
}

// mirror appends t unless another caller holds or completed its claim.
// The event consumer and the pending sweep run concurrently, so the claim
// is what keeps a row from being appended twice.
func (w *SyncWorker) mirror(ctx context.Context, t core.Transaction) (bool, error) {
	claimed, err := w.store.ClaimSync(ctx, t.ID)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to claim transaction",
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
		return false, fmt.Errorf("claim transaction: %w", err)
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Transaction synced or claimed elsewhere", log.FieldTransactionID, t.ID)
		return false, nil
	}
	if err := w.syncToSheets(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

func (w *SyncWorker) syncToSheets(ctx context.Context, t core.Transaction) error {
	start := time.Now()
	ref, err := w.sheets.AppendTransaction(ctx, t)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to append transaction to sheet",
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
		if markErr := w.store.MarkSyncError(ctx, t.ID, err); markErr != nil {
			return fmt.Errorf("mark sync error: %w", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := w.store.MarkSynced(ctx, t.ID, ref); err != nil {
		// The row is already in the sheet; retrying would append it twice.
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldTransactionID, t.ID,
			log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Successfully synced transaction",
		log.FieldTransactionID, t.ID,
		log.FieldSheetRef, ref,
		log.FieldDuration, time.Since(start))
	return nil
}
