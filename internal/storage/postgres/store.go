// Package postgres provides a relational LedgerStore backed by PostgreSQL.
// Balances use NUMERIC, so balance arithmetic stays exact in SQL and the
// updated value comes back via RETURNING.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_number TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	account_name   TEXT NOT NULL,
	balance        NUMERIC(20, 2) NOT NULL,
	currency_code  TEXT NOT NULL,
	UNIQUE (user_id, account_name)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	transaction_id              TEXT NOT NULL,
	account_number              TEXT NOT NULL,
	counterparty_account_number TEXT NOT NULL,
	entry_type                  TEXT NOT NULL,
	amount                      NUMERIC(20, 2) NOT NULL,
	balance_after               NUMERIC(20, 2) NOT NULL,
	posted_at                   TIMESTAMPTZ NOT NULL,
	memo                        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (transaction_id, entry_type)
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_posted
	ON ledger_entries (account_number, posted_at);
`

type PostgresLedgerStore struct {
	db *sql.DB
}

// NewPostgresLedgerStore wraps an open *sql.DB (driver: lib/pq) and ensures
// the schema exists. The caller owns the connection's lifetime.
func NewPostgresLedgerStore(db *sql.DB) (*PostgresLedgerStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, storeErr("migrate", err)
	}
	return &PostgresLedgerStore{db: db}, nil
}

// CreateAccount provisions an account row. Not part of the LedgerStore
// contract; account creation happens out of band.
func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts
		(account_number, user_id, account_name, balance, currency_code)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.ExecContext(ctx, query,
		account.AccountNumber, account.UserID, account.AccountName,
		account.Balance, account.CurrencyCode)
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	const query = `SELECT account_number, user_id, account_name, balance, currency_code
		FROM accounts WHERE account_number = $1`

	var a models.Account
	err := p.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&a.AccountNumber, &a.UserID, &a.AccountName, &a.Balance, &a.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	if err != nil {
		return models.Account{}, storeErr("get account", err)
	}
	return a, nil
}

func (p *PostgresLedgerStore) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	const query = `SELECT account_number, user_id, account_name, balance, currency_code
		FROM accounts WHERE user_id = $1 ORDER BY account_number`

	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.AccountNumber, &a.UserID, &a.AccountName, &a.Balance, &a.CurrencyCode); err != nil {
			return nil, storeErr("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list accounts", err)
	}
	return accounts, nil
}

func (p *PostgresLedgerStore) ApplyBalanceDelta(ctx context.Context, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `UPDATE accounts SET balance = balance + $1
		WHERE account_number = $2
		RETURNING balance`

	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, query, delta, accountNumber).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	if err != nil {
		return decimal.Zero, storeErr("apply balance delta", err)
	}
	return balance, nil
}

// AppendPair inserts both legs in one DB transaction; a failure rolls back
// and leaves no partial row.
func (p *PostgresLedgerStore) AppendPair(ctx context.Context, debit, credit models.LedgerEntry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	for _, e := range []models.LedgerEntry{debit, credit} {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries
		(transaction_id, account_number, counterparty_account_number,
		 entry_type, amount, balance_after, posted_at, memo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.ExecContext(ctx, query,
		e.TransactionID, e.AccountNumber, e.CounterpartyNumber,
		string(e.Type), e.Amount, e.BalanceAfter, e.PostedAt, e.Memo)
	if err != nil {
		return storeErr("insert entry", err)
	}
	return nil
}

func (p *PostgresLedgerStore) Scan(ctx context.Context, accountNumber string, from, to time.Time) ([]models.LedgerEntry, error) {
	const query = `SELECT transaction_id, account_number, counterparty_account_number,
		entry_type, amount, balance_after, posted_at, memo
		FROM ledger_entries
		WHERE account_number = $1 AND posted_at >= $2 AND posted_at < $3
		ORDER BY posted_at ASC`

	rows, err := p.db.QueryContext(ctx, query, accountNumber, from, to)
	if err != nil {
		return nil, storeErr("scan", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.TransactionID, &e.AccountNumber, &e.CounterpartyNumber,
			&entryType, &e.Amount, &e.BalanceAfter, &e.PostedAt, &e.Memo); err != nil {
			return nil, storeErr("scan entry", err)
		}
		e.Type = models.EntryType(entryType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("scan", err)
	}
	return entries, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", interfaces.ErrStoreUnavailable, op, err)
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
