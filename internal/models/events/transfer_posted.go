package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferPosted is published after both legs of a transfer have been
// durably written. Delivery is best effort and never affects the transfer.
type TransferPosted struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	PostedAt      time.Time       `json:"posted_at"`
}
