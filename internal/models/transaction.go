package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferReceipt is returned to the caller after a transfer has been
// durably posted. FromBalance and ToBalance are the balances immediately
// after both legs were applied.
type TransferReceipt struct {
	TransactionID string          `json:"transaction_id"`
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	PostedAt      time.Time       `json:"posted_at"`
	FromBalance   decimal.Decimal `json:"from_balance"`
	ToBalance     decimal.Decimal `json:"to_balance"`
}

// DisplayTransaction is the caller-facing view of one ledger entry,
// produced by the history query.
type DisplayTransaction struct {
	TransactionID string          `json:"transaction_id"`
	AccountNumber string          `json:"account_number"`
	PostedAt      time.Time       `json:"posted_at"`
	Type          string          `json:"transaction_type"` // "Credit" or "Debit"
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description"`
}
