package domain

import "cosmossdk.io/math"

// OperationKind identifies which state transition an audit record
// describes.
type OperationKind string

// Operation kind constants
const (
	OpInstantiate OperationKind = "instantiate"
	OpDeposit     OperationKind = "deposit"
	OpWithdraw    OperationKind = "withdraw"
)

// Operation is the audit record of one applied vault transition.
// Corresponds to operations table in PostgreSQL and the
// vault_operations table in ClickHouse.
type Operation struct {
	ID               string        `json:"id"`                 // UUID assigned by the dispatcher
	Kind             OperationKind `json:"kind"`               // instantiate | deposit | withdraw
	Actor            Address       `json:"actor"`              // depositor, holder, or instantiating owner
	Amount           math.Int      `json:"amount"`             // underlying moved (deposit amount or amount redeemed)
	Shares           math.Int      `json:"shares"`             // shares minted or burned
	VaultValue       math.Int      `json:"vault_value"`        // valuation snapshot the pricing used
	TotalSupplyAfter math.Int      `json:"total_supply_after"` // supply once the transition committed
	Instructions     int           `json:"instructions"`       // emitted instruction count
	Timestamp        int64         `json:"timestamp"`          // Unix timestamp in milliseconds
}
