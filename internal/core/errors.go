package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount marks amounts that are zero, negative or not a number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds marks an expense that would drive an envelope
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound marks a referenced envelope or entry that does not exist
	// or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks an underlying store failure. Operations failing with
	// ErrStorage leave no partial state and are safe to retry in full.
	ErrStorage = errors.New("storage failure")

	ErrEmptyOwner = errors.New("empty owner")
	ErrEmptyName  = errors.New("empty name")
)

// StorageError wraps a store failure so callers can match it with
// errors.Is(err, ErrStorage) while keeping the cause in the chain.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
