// Package storage defines the persistence interfaces for vault state
// and the sentinel errors every implementation maps its driver errors
// onto.
package storage

import "errors"

// ErrNotFound means the requested record does not exist. Callers that
// treat absence as zero check for this sentinel rather than the
// driver's own no-rows error.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey means an insert collided with an existing key.
// Config and operation records are write-once.
var ErrDuplicateKey = errors.New("duplicate key for write-once record")

// ErrInvalidInput means the store rejected a value before writing it,
// such as a negative balance or supply.
var ErrInvalidInput = errors.New("invalid input")
