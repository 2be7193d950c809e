package models

import "github.com/shopspring/decimal"

// Account represents one account owned by a user.
// AccountNumber is unique system-wide; AccountName is unique only within
// the owning user's set of accounts.
type Account struct {
	AccountNumber string          `json:"account_number"`
	UserID        string          `json:"user_id"`
	AccountName   string          `json:"account_name"`
	Balance       decimal.Decimal `json:"balance"`
	CurrencyCode  string          `json:"currency_code"`
}
