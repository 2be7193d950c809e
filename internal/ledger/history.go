package ledger

import (
	"context"
	"time"

	"github.com/chatbank/ledger-engine/internal/models"
)

// ListTransactions returns the account's ledger entries posted within the
// last dayWindow days plus the whole current day, oldest first, as
// caller-facing display rows. Read-only: it takes no locks and observes
// whatever consistent state the store holds.
func (l *Ledger) ListTransactions(ctx context.Context, userID, accountIdentifier string, dayWindow int) ([]models.DisplayTransaction, error) {
	accountNumber, err := l.dir.Resolve(ctx, userID, accountIdentifier)
	if err != nil {
		return nil, err
	}

	// Half-open range [today - dayWindow, today + 1 day) so entries from
	// later today are included.
	now := l.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -dayWindow)
	to := today.AddDate(0, 0, 1)

	entries, err := l.store.Scan(ctx, accountNumber, from, to)
	if err != nil {
		return nil, err
	}

	transactions := make([]models.DisplayTransaction, 0, len(entries))
	for _, e := range entries {
		transactions = append(transactions, models.DisplayTransaction{
			TransactionID: e.TransactionID,
			AccountNumber: e.AccountNumber,
			PostedAt:      e.PostedAt,
			Type:          typeLabel(e.Type),
			Amount:        e.Amount,
			BalanceAfter:  e.BalanceAfter,
			Description:   describe(e),
		})
	}
	return transactions, nil
}

func typeLabel(t models.EntryType) string {
	if t == models.Credit {
		return "Credit"
	}
	return "Debit"
}

// describe derives the human-readable description from the counterparty:
// the sentinel accounts mark external cash movement, anything else is an
// ordinary transfer. A memo, when present, is appended.
func describe(e models.LedgerEntry) string {
	var desc string
	switch e.CounterpartyNumber {
	case WithdrawSinkAccount:
		desc = "Withdraw"
	case DepositSourceAccount:
		desc = "Deposit"
	default:
		desc = "Transfer"
	}
	if e.Memo != "" {
		desc += " " + e.Memo
	}
	return desc
}
