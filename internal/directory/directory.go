// Package directory resolves user-scoped account identifiers (a display
// name or a canonical account number) to canonical account records.
package directory

import (
	"context"
	"sort"

	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/models"
)

type Directory struct {
	store interfaces.LedgerStore
}

func NewDirectory(store interfaces.LedgerStore) *Directory {
	return &Directory{store: store}
}

// ListAccounts returns all accounts owned by userID, ordered by account
// number so display order is stable. An unknown user yields an empty set,
// not an error.
func (d *Directory) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := d.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountNumber < accounts[j].AccountNumber
	})
	return accounts, nil
}

// Resolve maps identifier to a canonical account number. If identifier
// matches the name of an account owned by userID, that account's number is
// returned; otherwise identifier is echoed back unchanged and existence is
// validated later, at the point the store needs a real row.
//
// Account names are unique per user by construction. Should that invariant
// be violated upstream, the lexicographically first account number wins,
// which keeps resolution deterministic in the degraded case.
func (d *Directory) Resolve(ctx context.Context, userID, identifier string) (string, error) {
	accounts, err := d.ListAccounts(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.AccountName == identifier {
			return a.AccountNumber, nil
		}
	}
	return identifier, nil
}

// ListTransferTargets returns every account owned by userID except the one
// fromIdentifier resolves to.
func (d *Directory) ListTransferTargets(ctx context.Context, userID, fromIdentifier string) ([]models.Account, error) {
	fromNumber, err := d.Resolve(ctx, userID, fromIdentifier)
	if err != nil {
		return nil, err
	}

	accounts, err := d.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	targets := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.AccountNumber != fromNumber {
			targets = append(targets, a)
		}
	}
	return targets, nil
}
