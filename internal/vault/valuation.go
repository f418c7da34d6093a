package vault

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

// legHolding captures one routing leg's receipt balance and the
// underlying value that balance converts back to, both read at the
// same valuation snapshot.
type legHolding struct {
	leg     domain.RoutingLeg
	balance math.Int // receipt tokens the vault holds
	value   math.Int // underlying the pool would return for balance
}

// depositValue returns V for share pricing on deposit: the vault's own
// balance in the underlying token. Routed capital is not counted here;
// deposits are priced against what the vault holds directly.
func (e *Engine) depositValue(ctx context.Context, cfg *domain.VaultConfig) (math.Int, error) {
	bal, err := e.oracle.TokenBalance(ctx, cfg.VaultAddress, cfg.UnderlyingToken)
	if err != nil {
		return math.Int{}, fmt.Errorf("%w: underlying balance of vault: %w", ErrExternalQuery, err)
	}
	if bal.IsNil() || bal.IsNegative() {
		return math.Int{}, fmt.Errorf("%w: underlying balance of vault: malformed value", ErrExternalQuery)
	}
	return bal, nil
}

// redeemValue returns V for withdrawals plus the per-leg holdings the
// instruction builder needs. Single-pool vaults value the underlying
// directly. Routed vaults sum, over every leg, what the held receipt
// balance would convert back to through its originating pool.
func (e *Engine) redeemValue(ctx context.Context, cfg *domain.VaultConfig) (math.Int, []legHolding, error) {
	if !cfg.MultiPool() {
		v, err := e.depositValue(ctx, cfg)
		return v, nil, err
	}

	total := math.ZeroInt()
	holdings := make([]legHolding, 0, len(cfg.Routing))
	for _, leg := range cfg.Routing {
		bal, err := e.oracle.TokenBalance(ctx, cfg.VaultAddress, leg.ReceiptToken)
		if err != nil {
			return math.Int{}, nil, fmt.Errorf("%w: receipt balance %s: %w", ErrExternalQuery, leg.ReceiptToken, err)
		}
		if bal.IsNil() || bal.IsNegative() {
			return math.Int{}, nil, fmt.Errorf("%w: receipt balance %s: malformed value", ErrExternalQuery, leg.ReceiptToken)
		}

		val, err := e.oracle.Convert(ctx, leg.Pool, bal)
		if err != nil {
			return math.Int{}, nil, fmt.Errorf("%w: convert via pool %s: %w", ErrExternalQuery, leg.Pool, err)
		}
		if val.IsNil() || val.IsNegative() {
			return math.Int{}, nil, fmt.Errorf("%w: convert via pool %s: malformed value", ErrExternalQuery, leg.Pool)
		}

		total, err = checkedAdd(total, val)
		if err != nil {
			return math.Int{}, nil, err
		}
		holdings = append(holdings, legHolding{leg: leg, balance: bal, value: val})
	}
	return total, holdings, nil
}
