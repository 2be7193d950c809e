// Package memory provides an in-memory LedgerStore, used for tests and for
// running the engine without external storage.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/models"
)

// MemoryLedgerStore keeps accounts and ledger entries in process memory.
// All methods are safe for concurrent use; callers get copies so internal
// state cannot be mutated from outside.
type MemoryLedgerStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	entries  []models.LedgerEntry
}

// NewMemoryLedgerStore creates a store pre-populated with the given
// accounts. Accounts are otherwise provisioned via CreateAccount.
func NewMemoryLedgerStore(seed ...models.Account) *MemoryLedgerStore {
	s := &MemoryLedgerStore{accounts: make(map[string]models.Account)}
	for _, a := range seed {
		s.accounts[a.AccountNumber] = a
	}
	return s
}

// CreateAccount registers an account. Provisioning happens out of band;
// this is not part of the LedgerStore contract.
func (s *MemoryLedgerStore) CreateAccount(account models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.AccountNumber] = account
}

func (s *MemoryLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountNumber]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	return a, nil
}

func (s *MemoryLedgerStore) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []models.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountNumber < accounts[j].AccountNumber
	})
	return accounts, nil
}

func (s *MemoryLedgerStore) ApplyBalanceDelta(ctx context.Context, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountNumber]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	a.Balance = a.Balance.Add(delta)
	s.accounts[accountNumber] = a
	return a.Balance, nil
}

// AppendPair appends both legs under one critical section, so a concurrent
// Scan sees either both entries or neither.
func (s *MemoryLedgerStore) AppendPair(ctx context.Context, debit, credit models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, debit, credit)
	return nil
}

func (s *MemoryLedgerStore) Scan(ctx context.Context, accountNumber string, from, to time.Time) ([]models.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.LedgerEntry
	for _, e := range s.entries {
		if e.AccountNumber != accountNumber {
			continue
		}
		if e.PostedAt.Before(from) || !e.PostedAt.Before(to) {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PostedAt.Before(result[j].PostedAt)
	})
	return result, nil
}

var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
