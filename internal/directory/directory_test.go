package directory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbank/ledger-engine/internal/directory"
	"github.com/chatbank/ledger-engine/internal/models"
	"github.com/chatbank/ledger-engine/internal/storage/memory"
)

func newDirectory(accounts ...models.Account) *directory.Directory {
	return directory.NewDirectory(memory.NewMemoryLedgerStore(accounts...))
}

func account(number, userID, name string) models.Account {
	return models.Account{
		AccountNumber: number,
		UserID:        userID,
		AccountName:   name,
		Balance:       decimal.Zero,
		CurrencyCode:  "USD",
	}
}

func TestListAccountsStableOrder(t *testing.T) {
	dir := newDirectory(
		account("222", "U1", "Savings"),
		account("111", "U1", "Checking"),
		account("333", "U2", "Checking"),
	)

	accounts, err := dir.ListAccounts(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "111", accounts[0].AccountNumber)
	assert.Equal(t, "222", accounts[1].AccountNumber)
}

func TestListAccountsUnknownUserIsEmpty(t *testing.T) {
	dir := newDirectory(account("111", "U1", "Checking"))

	accounts, err := dir.ListAccounts(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestResolve(t *testing.T) {
	dir := newDirectory(
		account("111", "U1", "Checking"),
		account("222", "U1", "Savings"),
		account("333", "U2", "Checking"),
	)
	ctx := context.Background()

	t.Run("name resolves to number", func(t *testing.T) {
		number, err := dir.Resolve(ctx, "U1", "Savings")
		require.NoError(t, err)
		assert.Equal(t, "222", number)
	})

	t.Run("names are user scoped", func(t *testing.T) {
		number, err := dir.Resolve(ctx, "U2", "Checking")
		require.NoError(t, err)
		assert.Equal(t, "333", number)
	})

	t.Run("unmatched identifier echoes back", func(t *testing.T) {
		number, err := dir.Resolve(ctx, "U1", "9999999999")
		require.NoError(t, err)
		assert.Equal(t, "9999999999", number)
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		once, err := dir.Resolve(ctx, "U1", "Checking")
		require.NoError(t, err)
		twice, err := dir.Resolve(ctx, "U1", once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})
}

func TestResolveDuplicateNamePicksLowestNumber(t *testing.T) {
	// Name uniqueness is enforced upstream; if it is ever violated the
	// lexicographically first account number must win deterministically.
	dir := newDirectory(
		account("555", "U1", "Checking"),
		account("444", "U1", "Checking"),
	)

	number, err := dir.Resolve(context.Background(), "U1", "Checking")
	require.NoError(t, err)
	assert.Equal(t, "444", number)
}

func TestListTransferTargets(t *testing.T) {
	dir := newDirectory(
		account("111", "U1", "Checking"),
		account("222", "U1", "Savings"),
		account("333", "U1", "Holiday"),
	)
	ctx := context.Background()

	targets, err := dir.ListTransferTargets(ctx, "U1", "Checking")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "222", targets[0].AccountNumber)
	assert.Equal(t, "333", targets[1].AccountNumber)

	// A number that resolves to nothing excludes nothing.
	targets, err = dir.ListTransferTargets(ctx, "U1", "777")
	require.NoError(t, err)
	assert.Len(t, targets, 3)
}
