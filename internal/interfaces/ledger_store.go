package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatbank/ledger-engine/internal/models"
)

// LedgerStore is the durability boundary of the engine. It is the only
// component allowed to mutate account balances or append ledger entries.
//
// AppendPair must write both legs as one atomic unit: after a failure no
// partial row may be observable. ApplyBalanceDelta is only ever called
// while the engine holds the pair lock for the affected account, so
// implementations may use a plain read-modify-write internally.
type LedgerStore interface {
	GetAccount(ctx context.Context, accountNumber string) (models.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]models.Account, error)

	ApplyBalanceDelta(ctx context.Context, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error)
	AppendPair(ctx context.Context, debit, credit models.LedgerEntry) error

	// Scan returns the account's entries with PostedAt in [from, to),
	// ordered by PostedAt ascending.
	Scan(ctx context.Context, accountNumber string, from, to time.Time) ([]models.LedgerEntry, error)
}
