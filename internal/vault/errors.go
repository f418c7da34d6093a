package vault

import "errors"

// Engine errors. Every failure aborts the whole operation atomically;
// callers never observe partial state.
var (
	// ErrValidation is returned when an identity or routing table is malformed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidAmount is returned when an amount or share count is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientShares is returned when a withdrawal exceeds the holder's balance.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrArithmetic is returned on overflow, underflow, or division by zero.
	// It signals a pricing/state inconsistency and is never clamped.
	ErrArithmetic = errors.New("arithmetic error")

	// ErrExternalQuery is returned when a collaborator is unreachable
	// or returns malformed data.
	ErrExternalQuery = errors.New("external query failed")

	// ErrNotInitialized is returned when no vault config has been stored yet.
	ErrNotInitialized = errors.New("vault not initialized")

	// ErrAlreadyInitialized is returned when instantiate runs against
	// an existing config.
	ErrAlreadyInitialized = errors.New("vault already initialized")
)
