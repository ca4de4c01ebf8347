package services

import (
	"context"
	"errors"
	"fmt"

	"finbot/internal/backend"
	"finbot/internal/core"
	"finbot/internal/log"
)

// Publisher announces committed transactions to downstream consumers.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, transactionID, userID int64) error
}

// Invalidator drops cached derived data for a user.
type Invalidator interface {
	InvalidateUser(userID int64)
}

// LedgerService fronts the ledger for the transport: every commit
// invalidates the user's cached stats and emits an event.
type LedgerService struct {
	ledger      backend.Ledger
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger
}

func NewLedgerService(ledger backend.Ledger, publisher Publisher, invalidator Invalidator) *LedgerService {
	return &LedgerService{
		ledger:      ledger,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      log.ForComponent(nil, log.ComponentLedger),
	}
}

// RegisterUser is idempotent; repeated calls keep the first profile.
func (s *LedgerService) RegisterUser(ctx context.Context, u core.NewUser) error {
	if err := s.ledger.RegisterUser(ctx, u); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

func (s *LedgerService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.ledger.GetUser(ctx, id)
}

// RecordTransaction commits t. Publishing is best-effort: the pending sweep
// of the worker picks up anything whose event was lost.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.NewTransaction) (int64, error) {
	id, err := s.ledger.RecordTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUser(t.UserID)
	}

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldTransactionID, id,
		log.FieldUserID, t.UserID,
		log.FieldIsIncome, t.IsIncome)

	if err := s.publish(ctx, id, t.UserID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldTransactionID, id,
			log.FieldError, err)
	}
	return id, nil
}

func (s *LedgerService) SetBudget(ctx context.Context, b core.Budget) error {
	if err := s.ledger.SetBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, id, userID int64) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping event")
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx, id, userID)
}

// Ping checks the ledger is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.ledger.Ping(ctx)
}

// Close releases the ledger.
func (s *LedgerService) Close() error {
	var errs []error
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
