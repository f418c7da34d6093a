// Package dispatch maps inbound vault messages onto engine operations,
// records the audit trail, and broadcasts committed operations to
// WebSocket subscribers.
package dispatch

import (
	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

// InstantiateRequest creates the vault. Sent once per deployment.
type InstantiateRequest struct {
	Owner           domain.Address      `json:"owner"`
	UnderlyingToken domain.Address      `json:"underlying_token"`
	Routing         domain.RoutingTable `json:"routing,omitempty"`
}

// InstantiateResponse echoes the persisted config, including the
// derived vault address.
type InstantiateResponse struct {
	Config *domain.VaultConfig `json:"config"`
}

// DepositRequest adds underlying capital in exchange for shares.
type DepositRequest struct {
	Depositor domain.Address `json:"depositor"`
	Amount    math.Int       `json:"amount"`
}

// DepositResponse reports the minted shares and the instructions the
// host must execute to move the depositor's funds.
type DepositResponse struct {
	SharesMinted math.Int             `json:"shares_minted"`
	VaultAddress domain.Address       `json:"vault_address"`
	TotalSupply  math.Int             `json:"total_supply"`
	Instructions []domain.Instruction `json:"instructions"`
}

// WithdrawRequest burns shares for a proportional payout.
type WithdrawRequest struct {
	Holder domain.Address `json:"holder"`
	Shares math.Int       `json:"shares"`
}

// WithdrawResponse reports the redeemed amount and the unwind
// instructions, payout last.
type WithdrawResponse struct {
	AmountRedeemed math.Int             `json:"amount_redeemed"`
	TotalSupply    math.Int             `json:"total_supply"`
	Instructions   []domain.Instruction `json:"instructions"`
}

// VaultInfoResponse echoes the stored config for the info query.
type VaultInfoResponse struct {
	Config *domain.VaultConfig `json:"config"`
}

// TotalSupplyResponse is the reply to the supply query.
type TotalSupplyResponse struct {
	TotalSupply math.Int `json:"total_supply"`
}

// BalanceOfResponse is the reply to the balance query.
type BalanceOfResponse struct {
	Holder  domain.Address `json:"holder"`
	Balance math.Int       `json:"balance"`
}

// VaultValueResponse is the reply to the valuation query.
type VaultValueResponse struct {
	VaultValue math.Int `json:"vault_value"`
}

// InvariantResponse is the reply to the conservation check.
type InvariantResponse struct {
	TotalSupply math.Int `json:"total_supply"`
	SumBalances math.Int `json:"sum_balances"`
	Consistent  bool     `json:"consistent"`
}

// ErrorResponse is the body returned for every failed request. Failed
// requests never carry instructions.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
