package interfaces

import "errors"

var (
	// ErrAccountNotFound is returned when a store operation needs an
	// account row and none exists for the given number.
	ErrAccountNotFound = errors.New("account not found")

	// ErrStoreUnavailable is returned on I/O or durability failures.
	// The engine guarantees no partial transfer effect survives it.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)
