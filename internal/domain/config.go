package domain

import "fmt"

// BpsDenominator is the basis-point scale used by routing weights.
const BpsDenominator = 10_000

// TokenSelector names which side of a routing pool an input amount
// enters on. Pools are two-sided; the vault's underlying is token1 of
// every routing pool and the pool's receipt asset is token2.
type TokenSelector string

// Token selector constants
const (
	SelectToken1 TokenSelector = "token1"
	SelectToken2 TokenSelector = "token2"
)

// Validate checks that the selector is one of the two known sides.
func (t TokenSelector) Validate() error {
	switch t {
	case SelectToken1, SelectToken2:
		return nil
	}
	return fmt.Errorf("unknown token selector %q", t)
}

// RoutingLeg is one destination for deposited capital: a swap pool,
// the receipt token the vault holds afterwards, and the policy knobs
// for how capital enters and leaves through this pool.
type RoutingLeg struct {
	Pool          Address       `json:"pool"`           // swap pool contract
	ReceiptToken  Address       `json:"receipt_token"`  // asset held by the vault after routing
	WeightBps     int           `json:"weight_bps"`     // share of each deposit routed here, in basis points
	DepositInput  TokenSelector `json:"deposit_input"`  // pool side the underlying enters on
	WithdrawInput TokenSelector `json:"withdraw_input"` // pool side the receipt token enters on when unwinding
}

// Validate checks leg identities and policy fields.
func (l RoutingLeg) Validate() error {
	if err := l.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := l.ReceiptToken.Validate(); err != nil {
		return fmt.Errorf("receipt token: %w", err)
	}
	if l.WeightBps <= 0 || l.WeightBps > BpsDenominator {
		return fmt.Errorf("weight %d bps out of range (0, %d]", l.WeightBps, BpsDenominator)
	}
	if err := l.DepositInput.Validate(); err != nil {
		return fmt.Errorf("deposit input: %w", err)
	}
	if err := l.WithdrawInput.Validate(); err != nil {
		return fmt.Errorf("withdraw input: %w", err)
	}
	return nil
}

// RoutingTable is the ordered list of legs deposits are split across.
// An empty table means the vault holds the underlying directly.
type RoutingTable []RoutingLeg

// Validate checks every leg and that weights cover the whole deposit.
func (rt RoutingTable) Validate() error {
	if len(rt) == 0 {
		return nil
	}
	total := 0
	for i, leg := range rt {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		total += leg.WeightBps
	}
	if total != BpsDenominator {
		return fmt.Errorf("routing weights sum to %d bps, want %d", total, BpsDenominator)
	}
	return nil
}

// TwoPoolRouting builds the classic even-split table: half of every
// deposit into each pool, underlying entering as token1, receipt
// tokens unwinding as token2.
func TwoPoolRouting(poolA, receiptA, poolB, receiptB Address) RoutingTable {
	return RoutingTable{
		{Pool: poolA, ReceiptToken: receiptA, WeightBps: BpsDenominator / 2, DepositInput: SelectToken1, WithdrawInput: SelectToken2},
		{Pool: poolB, ReceiptToken: receiptB, WeightBps: BpsDenominator / 2, DepositInput: SelectToken1, WithdrawInput: SelectToken2},
	}
}

// VaultConfig is the immutable per-deployment record written once at
// instantiate time.
type VaultConfig struct {
	VaultAddress    Address      `json:"vault_address"`    // derived identity the vault holds assets under
	Owner           Address      `json:"owner"`            // set once at creation
	UnderlyingToken Address      `json:"underlying_token"` // base asset deposited and redeemed
	Routing         RoutingTable `json:"routing,omitempty"`
	CreatedAt       int64        `json:"created_at"` // Unix timestamp in milliseconds
}

// MultiPool reports whether deposits are routed through swap pools.
func (c *VaultConfig) MultiPool() bool {
	return len(c.Routing) > 0
}

// Validate checks all identities in the config.
func (c *VaultConfig) Validate() error {
	if err := c.VaultAddress.Validate(); err != nil {
		return fmt.Errorf("vault address: %w", err)
	}
	if err := c.Owner.Validate(); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if err := c.UnderlyingToken.Validate(); err != nil {
		return fmt.Errorf("underlying token: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	return nil
}
