package ledger

import "errors"

// Domain errors returned by the transfer engine. Store-level errors
// (account not found, store unavailable) live in internal/interfaces next
// to the store contract; lock-wait timeouts surface as lock.ErrBusy.
var (
	// ErrInvalidAmount covers non-positive amounts and amounts with more
	// fractional digits than the currency allows. Not retryable as-is.
	ErrInvalidAmount = errors.New("amount must be a positive decimal with at most 2 fractional digits")

	// ErrSameAccount means source and destination resolved to the same
	// canonical account number.
	ErrSameAccount = errors.New("source and destination are the same account")

	// ErrForbiddenAccount means the account exists but is owned by a
	// different user and is not one of the sentinel accounts.
	ErrForbiddenAccount = errors.New("account is not owned by the requesting user")

	// ErrTransferAborted means a failure occurred mid-post and the engine
	// rolled back the partial effect. Safe to retry.
	ErrTransferAborted = errors.New("transfer aborted and rolled back")

	// ErrInsufficientFunds is returned only in checked-overdraft mode.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
