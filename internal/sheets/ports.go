package sheets

import (
	"context"

	"finbot/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionAppender mirrors one ledger row into an external sheet and
	// returns a reference to where it landed.
	TransactionAppender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)
