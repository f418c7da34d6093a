// Package oracle reads balances and conversion rates from the
// external token and pool collaborators the vault prices against.
package oracle

import (
	"context"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

// Client defines the read-only collaborator query interface.
type Client interface {
	// TokenBalance returns holder's balance in the given token contract.
	TokenBalance(ctx context.Context, holder, token domain.Address) (math.Int, error)

	// Convert quotes the underlying amount the pool would return right
	// now for amount of its receipt-side asset. Point-in-time read, no
	// staleness guarantee.
	Convert(ctx context.Context, pool domain.Address, amount math.Int) (math.Int, error)
}
