package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbank/ledger-engine/internal/ledger"
	"github.com/chatbank/ledger-engine/internal/lock"
	"github.com/chatbank/ledger-engine/internal/models"
	"github.com/chatbank/ledger-engine/internal/storage/memory"
)

func pairFor(txID, account, counterparty string, amount, balanceAfter string, at time.Time, memo string) (models.LedgerEntry, models.LedgerEntry) {
	debit := models.LedgerEntry{
		TransactionID:      txID,
		AccountNumber:      account,
		CounterpartyNumber: counterparty,
		Type:               models.Debit,
		Amount:             dec(amount),
		BalanceAfter:       dec(balanceAfter),
		PostedAt:           at,
		Memo:               memo,
	}
	credit := models.LedgerEntry{
		TransactionID:      txID,
		AccountNumber:      counterparty,
		CounterpartyNumber: account,
		Type:               models.Credit,
		Amount:             dec(amount),
		BalanceAfter:       dec(balanceAfter),
		PostedAt:           at,
		Memo:               memo,
	}
	return debit, credit
}

func TestListTransactionsWindowAndDescriptions(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
	store := memory.NewMemoryLedgerStore(seedAccounts()...)
	engine := ledger.NewLedger(store, lock.NewLocalPairLocker(),
		ledger.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	// Too old: eight days back, outside a 7-day window.
	d, c := pairFor("tx-old", savingsNumber, checkingNumber, "10.00", "490.00", now.AddDate(0, 0, -8), "")
	require.NoError(t, store.AppendPair(ctx, d, c))

	// In window: ordinary transfer with a memo, three days back.
	d, c = pairFor("tx-rent", savingsNumber, checkingNumber, "250.00", "240.00", now.AddDate(0, 0, -3), "rent")
	require.NoError(t, store.AppendPair(ctx, d, c))

	// In window: deposit earlier today (credit from the deposit source).
	d, c = pairFor("tx-dep", ledger.DepositSourceAccount, savingsNumber, "100.00", "340.00", now.Add(-2*time.Hour), "")
	require.NoError(t, store.AppendPair(ctx, d, c))

	// In window: withdrawal later today.
	d, c = pairFor("tx-wd", savingsNumber, ledger.WithdrawSinkAccount, "40.00", "300.00", now.Add(3*time.Hour), "atm")
	require.NoError(t, store.AppendPair(ctx, d, c))

	// Tomorrow falls outside the half-open [today-7d, today+1d) range.
	d, c = pairFor("tx-future", savingsNumber, checkingNumber, "5.00", "295.00", now.AddDate(0, 0, 1).Add(10*time.Hour), "")
	require.NoError(t, store.AppendPair(ctx, d, c))

	transactions, err := engine.ListTransactions(ctx, userOne, "Savings", 7)
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	// Oldest first.
	assert.Equal(t, "tx-rent", transactions[0].TransactionID)
	assert.Equal(t, "tx-dep", transactions[1].TransactionID)
	assert.Equal(t, "tx-wd", transactions[2].TransactionID)

	assert.Equal(t, "Debit", transactions[0].Type)
	assert.Equal(t, "Transfer rent", transactions[0].Description)

	assert.Equal(t, "Credit", transactions[1].Type)
	assert.Equal(t, "Deposit", transactions[1].Description)

	assert.Equal(t, "Debit", transactions[2].Type)
	assert.Equal(t, "Withdraw atm", transactions[2].Description)

	assert.True(t, transactions[0].Amount.Equal(dec("250.00")))
	assert.True(t, transactions[0].BalanceAfter.Equal(dec("240.00")))
}

func TestListTransactionsZeroWindowCoversToday(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := memory.NewMemoryLedgerStore(seedAccounts()...)
	engine := ledger.NewLedger(store, lock.NewLocalPairLocker(),
		ledger.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	d, c := pairFor("tx-yesterday", savingsNumber, checkingNumber, "1.00", "499.00", now.AddDate(0, 0, -1), "")
	require.NoError(t, store.AppendPair(ctx, d, c))
	d, c = pairFor("tx-today", savingsNumber, checkingNumber, "2.00", "497.00", now.Add(time.Hour), "")
	require.NoError(t, store.AppendPair(ctx, d, c))

	transactions, err := engine.ListTransactions(ctx, userOne, savingsNumber, 0)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "tx-today", transactions[0].TransactionID)
}
