// Package sqlite provides an embedded file-backed LedgerStore. Amounts are
// stored as text and parsed back into exact decimals; timestamps are stored
// as RFC 3339 text in UTC so range comparisons work lexicographically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/chatbank/ledger-engine/internal/interfaces"
	"github.com/chatbank/ledger-engine/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_number TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	account_name   TEXT NOT NULL,
	balance        TEXT NOT NULL,
	currency_code  TEXT NOT NULL,
	UNIQUE (user_id, account_name)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	transaction_id              TEXT NOT NULL,
	account_number              TEXT NOT NULL,
	counterparty_account_number TEXT NOT NULL,
	entry_type                  TEXT NOT NULL,
	amount                      TEXT NOT NULL,
	balance_after               TEXT NOT NULL,
	posted_at                   TEXT NOT NULL,
	memo                        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (transaction_id, entry_type)
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_posted
	ON ledger_entries (account_number, posted_at);
`

type SQLiteLedgerStore struct {
	db *sql.DB
}

// NewSQLiteLedgerStore opens (or creates) the database file at path and
// ensures the schema exists. The connection pool is capped at one so
// concurrent writers queue instead of hitting SQLITE_BUSY.
func NewSQLiteLedgerStore(path string) (*SQLiteLedgerStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storeErr("open", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeErr("migrate", err)
	}
	return &SQLiteLedgerStore{db: db}, nil
}

func (s *SQLiteLedgerStore) Close() error {
	return s.db.Close()
}

// CreateAccount provisions an account row. Not part of the LedgerStore
// contract; account creation happens out of band.
func (s *SQLiteLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts
		(account_number, user_id, account_name, balance, currency_code)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		account.AccountNumber, account.UserID, account.AccountName,
		account.Balance.String(), account.CurrencyCode)
	if err != nil {
		return storeErr("create account", err)
	}
	return nil
}

func (s *SQLiteLedgerStore) GetAccount(ctx context.Context, accountNumber string) (models.Account, error) {
	const query = `SELECT account_number, user_id, account_name, balance, currency_code
		FROM accounts WHERE account_number = ?`

	var a models.Account
	var balance string
	err := s.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&a.AccountNumber, &a.UserID, &a.AccountName, &balance, &a.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	if err != nil {
		return models.Account{}, storeErr("get account", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return models.Account{}, storeErr("parse balance", err)
	}
	return a, nil
}

func (s *SQLiteLedgerStore) ListAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	const query = `SELECT account_number, user_id, account_name, balance, currency_code
		FROM accounts WHERE user_id = ? ORDER BY account_number`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var balance string
		if err := rows.Scan(&a.AccountNumber, &a.UserID, &a.AccountName, &balance, &a.CurrencyCode); err != nil {
			return nil, storeErr("scan account", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, storeErr("parse balance", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list accounts", err)
	}
	return accounts, nil
}

// ApplyBalanceDelta does a read-modify-write inside a DB transaction. The
// engine holds the account's pair lock for the duration of the call, so the
// two steps cannot interleave with another writer on the same account.
func (s *SQLiteLedgerStore) ApplyBalanceDelta(ctx context.Context, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, storeErr("begin", err)
	}
	defer tx.Rollback()

	var balanceText string
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE account_number = ?`, accountNumber).Scan(&balanceText)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, accountNumber)
	}
	if err != nil {
		return decimal.Zero, storeErr("read balance", err)
	}

	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return decimal.Zero, storeErr("parse balance", err)
	}
	balance = balance.Add(delta)

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE account_number = ?`,
		balance.String(), accountNumber); err != nil {
		return decimal.Zero, storeErr("update balance", err)
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, storeErr("commit", err)
	}
	return balance, nil
}

// AppendPair inserts both legs in one DB transaction; a failure rolls back
// and leaves no partial row.
func (s *SQLiteLedgerStore) AppendPair(ctx context.Context, debit, credit models.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, query,
		e.TransactionID, e.AccountNumber, e.CounterpartyNumber,
		string(e.Type), e.Amount.String(), e.BalanceAfter.String(),
		formatTime(e.PostedAt), e.Memo)
	if err != nil {
		return storeErr("insert entry", err)
	}
	return nil
}

func (s *SQLiteLedgerStore) Scan(ctx context.Context, accountNumber string, from, to time.Time) ([]models.LedgerEntry, error) {
	const query = `SELECT transaction_id, account_number, counterparty_account_number,
		entry_type, amount, balance_after, posted_at, memo
		FROM ledger_entries
		WHERE account_number = ? AND posted_at >= ? AND posted_at < ?
		ORDER BY posted_at ASC`

	rows, err := s.db.QueryContext(ctx, query, accountNumber, formatTime(from), formatTime(to))
	if err != nil {
		return nil, storeErr("scan", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var entryType, amount, balanceAfter, postedAt string
		if err := rows.Scan(&e.TransactionID, &e.AccountNumber, &e.CounterpartyNumber,
			&entryType, &amount, &balanceAfter, &postedAt, &e.Memo); err != nil {
			return nil, storeErr("scan entry", err)
		}
		e.Type = models.EntryType(entryType)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storeErr("parse amount", err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, storeErr("parse balance_after", err)
		}
		if e.PostedAt, err = time.Parse(timeLayout, postedAt); err != nil {
			return nil, storeErr("parse posted_at", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("scan", err)
	}
	return entries, nil
}

// timeLayout keeps a fixed-width fractional second so stored timestamps
// compare correctly as text in range queries.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", interfaces.ErrStoreUnavailable, op, err)
}

var _ interfaces.LedgerStore = (*SQLiteLedgerStore)(nil)
