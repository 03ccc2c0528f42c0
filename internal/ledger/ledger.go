// Package ledger is the general-ledger resolution and balance engine:
// chart-of-accounts traversal, semantic key-account resolution, balance
// and series computation, balanced journal posting, and lazy GL linking
// for ancillary records.
//
// Every operation takes the org id explicitly; nothing in this package
// reads tenant identity from ambient state.
package ledger

import (
	"context"
	"errors"

	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the ledger engine.
var (
	ErrCyclicHierarchy     = errors.New("account hierarchy contains a cycle")
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrUnbalancedJournal   = errors.New("journal entries do not balance")
	ErrNoAccounts          = errors.New("org has no accounts")
	ErrUnknownRole         = errors.New("unknown key account role")
	ErrUnknownCounterparty = errors.New("unknown counterparty kind")
)

// TxBeginner starts a new database transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore provides read access to the chart of accounts and the
// role mapping table. Satisfied by *store.Queries.
type AccountStore interface {
	ListAccounts(ctx context.Context, orgID int64) ([]store.Account, error)
	GetMappedAccount(ctx context.Context, arg store.GetMappedAccountParams) (int64, error)
}
