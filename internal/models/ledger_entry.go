package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType marks which leg of a transfer an entry records.
type EntryType string

const (
	Debit  EntryType = "D"
	Credit EntryType = "C"
)

// LedgerEntry represents a single immutable ledger record for an account.
// Every transfer produces exactly two entries sharing a TransactionID:
// a debit on the source account and a credit on the destination, each
// naming the other as counterparty.
type LedgerEntry struct {
	TransactionID      string          `json:"transaction_id"`
	AccountNumber      string          `json:"account_number"`
	CounterpartyNumber string          `json:"counterparty_account_number"`
	Type               EntryType       `json:"type"`
	Amount             decimal.Decimal `json:"amount"` // strictly positive magnitude
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	PostedAt           time.Time       `json:"posted_at"`
	Memo               string          `json:"memo,omitempty"`
}

// SignedAmount returns the entry's effect on the account balance:
// negative for a debit leg, positive for a credit leg.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Type == Debit {
		return e.Amount.Neg()
	}
	return e.Amount
}
