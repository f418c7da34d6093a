// Package vault implements the share accounting engine: deposits mint
// proportional ownership shares, withdrawals burn them for a
// proportional slice of the vault's current value, and every state
// transition returns the external instructions the host must execute
// to move the real assets.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/oracle"
	"pooled-vault/internal/storage"
)

// Engine orchestrates deposit and withdraw transitions against the
// ledger, pricing them with the oracle's valuation snapshot. One
// operation runs at a time; the host's one-call-at-a-time guarantee is
// reproduced with an internal lock.
type Engine struct {
	mu      sync.RWMutex
	ledger  storage.LedgerStore
	configs storage.ConfigStore
	oracle  oracle.Client
}

// New creates an Engine over the given stores and collaborator client.
func New(ledger storage.LedgerStore, configs storage.ConfigStore, client oracle.Client) *Engine {
	return &Engine{
		ledger:  ledger,
		configs: configs,
		oracle:  client,
	}
}

// DepositResult is the outcome of a successful deposit transition.
type DepositResult struct {
	SharesMinted math.Int             `json:"shares_minted"`
	VaultValue   math.Int             `json:"vault_value"` // valuation snapshot used for pricing
	TotalSupply  math.Int             `json:"total_supply"`
	VaultAddress domain.Address       `json:"vault_address"`
	Instructions []domain.Instruction `json:"instructions"`
}

// WithdrawResult is the outcome of a successful withdraw transition.
type WithdrawResult struct {
	AmountRedeemed math.Int             `json:"amount_redeemed"`
	VaultValue     math.Int             `json:"vault_value"`
	TotalSupply    math.Int             `json:"total_supply"`
	Instructions   []domain.Instruction `json:"instructions"`
}

// InvariantReport is the result of a conservation check.
type InvariantReport struct {
	TotalSupply math.Int `json:"total_supply"`
	SumBalances math.Int `json:"sum_balances"`
	Consistent  bool     `json:"consistent"`
}

// Instantiate validates identities, derives the vault's own address,
// and persists the write-once config with supply zero. A second call
// fails with ErrAlreadyInitialized and leaves state untouched.
func (e *Engine) Instantiate(ctx context.Context, owner, underlying domain.Address, routing domain.RoutingTable) (*domain.VaultConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := owner.Validate(); err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ErrValidation, err)
	}
	if err := underlying.Validate(); err != nil {
		return nil, fmt.Errorf("%w: underlying token: %w", ErrValidation, err)
	}
	if err := routing.Validate(); err != nil {
		return nil, fmt.Errorf("%w: routing: %w", ErrValidation, err)
	}

	seeds := [][]byte{[]byte(owner), []byte(underlying)}
	for _, leg := range routing {
		seeds = append(seeds, []byte(leg.Pool), []byte(leg.ReceiptToken))
	}
	vaultAddr, err := domain.DeriveVaultAddress(seeds...)
	if err != nil {
		return nil, fmt.Errorf("%w: derive vault address: %w", ErrValidation, err)
	}

	cfg := &domain.VaultConfig{
		VaultAddress:    vaultAddr,
		Owner:           owner,
		UnderlyingToken: underlying,
		Routing:         routing,
		CreatedAt:       time.Now().UnixMilli(),
	}

	// The write-once config save gates the whole call: a duplicate must
	// fail before any ledger write, or re-instantiating would zero a
	// live vault's supply.
	if err := e.configs.Save(ctx, cfg); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrAlreadyInitialized
		}
		return nil, fmt.Errorf("save config: %w", err)
	}
	if err := e.ledger.SetTotalSupply(ctx, math.ZeroInt()); err != nil {
		return nil, fmt.Errorf("seed total supply: %w", err)
	}

	return cfg, nil
}

// Deposit prices amount against the current vault value, mints the
// resulting shares to the depositor, and returns the instruction
// sequence that moves and routes the deposited underlying. Share
// pricing: amount 1:1 on the bootstrap deposit, floor(amount * supply
// / V) afterwards.
func (e *Engine) Deposit(ctx context.Context, depositor domain.Address, amount math.Int) (*DepositResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := depositor.Validate(); err != nil {
		return nil, fmt.Errorf("%w: depositor: %w", ErrValidation, err)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidAmount)
	}

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	supply, err := e.ledger.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("load total supply: %w", err)
	}
	balance, err := e.ledger.Balance(ctx, depositor)
	if err != nil {
		return nil, fmt.Errorf("load depositor balance: %w", err)
	}

	// Valuation snapshot. Everything below prices against this read;
	// the emitted instructions must stay consistent with it.
	value, err := e.depositValue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var shares math.Int
	if supply.IsZero() {
		// Bootstrap: the first depositor sets the share price 1:1.
		shares = amount
	} else {
		shares, err = mulDivFloor(amount, supply, value)
		if err != nil {
			return nil, fmt.Errorf("price shares: %w", err)
		}
	}

	newSupply, err := checkedAdd(supply, shares)
	if err != nil {
		return nil, fmt.Errorf("grow supply: %w", err)
	}
	newBalance, err := checkedAdd(balance, shares)
	if err != nil {
		return nil, fmt.Errorf("grow balance: %w", err)
	}

	instructions, err := buildDepositInstructions(cfg, depositor, amount)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Commit(ctx, depositor, newBalance, newSupply); err != nil {
		return nil, fmt.Errorf("commit deposit: %w", err)
	}

	return &DepositResult{
		SharesMinted: shares,
		VaultValue:   value,
		TotalSupply:  newSupply,
		VaultAddress: cfg.VaultAddress,
		Instructions: instructions,
	}, nil
}

// Withdraw burns shares from the holder, pays out the proportional
// slice of the vault's redeemable value, and returns the instruction
// sequence that unwinds routed positions and pushes the payout.
// Redemption: floor(shares * V / supply) with the pre-burn supply.
func (e *Engine) Withdraw(ctx context.Context, holder domain.Address, shares math.Int) (*WithdrawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := holder.Validate(); err != nil {
		return nil, fmt.Errorf("%w: holder: %w", ErrValidation, err)
	}
	if shares.IsNil() || !shares.IsPositive() {
		return nil, fmt.Errorf("%w: share count must be positive", ErrInvalidAmount)
	}

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	supply, err := e.ledger.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("load total supply: %w", err)
	}
	balance, err := e.ledger.Balance(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("load holder balance: %w", err)
	}
	if shares.GT(balance) {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientShares, balance, shares)
	}

	value, holdings, err := e.redeemValue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// supply == 0 with a passing balance check means the ledger broke
	// the conservation invariant. Surface, never clamp.
	amount, err := mulDivFloor(shares, value, supply)
	if err != nil {
		return nil, fmt.Errorf("price redemption: %w", err)
	}

	newSupply, err := checkedSub(supply, shares)
	if err != nil {
		return nil, fmt.Errorf("shrink supply: %w", err)
	}
	newBalance, err := checkedSub(balance, shares)
	if err != nil {
		return nil, fmt.Errorf("shrink balance: %w", err)
	}

	instructions, err := buildWithdrawInstructions(cfg, holder, amount, shares, supply, holdings)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Commit(ctx, holder, newBalance, newSupply); err != nil {
		return nil, fmt.Errorf("commit withdraw: %w", err)
	}

	return &WithdrawResult{
		AmountRedeemed: amount,
		VaultValue:     value,
		TotalSupply:    newSupply,
		Instructions:   instructions,
	}, nil
}

// VaultValue returns the redeem-side valuation of everything the vault
// holds, in underlying units.
func (e *Engine) VaultValue(ctx context.Context) (math.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cfg, err := e.loadConfig(ctx)
	if err != nil {
		return math.Int{}, err
	}
	value, _, err := e.redeemValue(ctx, cfg)
	return value, err
}

// Config returns the stored vault config.
func (e *Engine) Config(ctx context.Context) (*domain.VaultConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadConfig(ctx)
}

// TotalSupply returns the outstanding share supply.
func (e *Engine) TotalSupply(ctx context.Context) (math.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.TotalSupply(ctx)
}

// BalanceOf returns the holder's share balance. Absent holders read
// as zero.
func (e *Engine) BalanceOf(ctx context.Context, holder domain.Address) (math.Int, error) {
	if err := holder.Validate(); err != nil {
		return math.Int{}, fmt.Errorf("%w: holder: %v", ErrValidation, err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Balance(ctx, holder)
}

// CheckInvariant verifies that the total supply equals the sum of all
// ledger balances.
func (e *Engine) CheckInvariant(ctx context.Context) (*InvariantReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	supply, err := e.ledger.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("load total supply: %w", err)
	}
	sum, err := e.ledger.SumBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum balances: %w", err)
	}
	return &InvariantReport{
		TotalSupply: supply,
		SumBalances: sum,
		Consistent:  supply.Equal(sum),
	}, nil
}

func (e *Engine) loadConfig(ctx context.Context) (*domain.VaultConfig, error) {
	cfg, err := e.configs.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildDepositInstructions emits, in execution order: per-leg
// allowances for the routed sub-amounts, the pull-transfer of the
// depositor's underlying into the vault, then the routing swaps.
// Allowances precede the operations that consume them, and the pull
// precedes the swaps so routed amounts are bounded by received funds.
func buildDepositInstructions(cfg *domain.VaultConfig, depositor domain.Address, amount math.Int) ([]domain.Instruction, error) {
	pull := domain.NewTransferFrom(cfg.UnderlyingToken, depositor, cfg.VaultAddress, amount)
	if !cfg.MultiPool() {
		return []domain.Instruction{pull}, nil
	}

	routed, err := splitByWeight(amount, cfg.Routing)
	if err != nil {
		return nil, err
	}

	instructions := make([]domain.Instruction, 0, 2*len(cfg.Routing)+1)
	for i, leg := range cfg.Routing {
		instructions = append(instructions, domain.NewIncreaseAllowance(cfg.UnderlyingToken, leg.Pool, routed[i], nil))
	}
	instructions = append(instructions, pull)
	for i, leg := range cfg.Routing {
		instructions = append(instructions, domain.NewSwap(leg.Pool, leg.DepositInput, routed[i], math.ZeroInt(), nil))
	}
	return instructions, nil
}

// buildWithdrawInstructions emits, in execution order: per-leg
// allowances and swaps unwinding the receipt holdings proportional to
// this redemption, then the payout transfer. The payout amount was
// priced assuming those conversions land, so they are instructed first.
func buildWithdrawInstructions(cfg *domain.VaultConfig, holder domain.Address, amount, shares, supply math.Int, holdings []legHolding) ([]domain.Instruction, error) {
	payout := domain.NewTransfer(cfg.UnderlyingToken, holder, amount)
	if !cfg.MultiPool() {
		return []domain.Instruction{payout}, nil
	}

	redeem := make([]math.Int, len(holdings))
	for i, h := range holdings {
		part, err := mulDivFloor(shares, h.balance, supply)
		if err != nil {
			return nil, fmt.Errorf("unwind leg %d: %w", i, err)
		}
		redeem[i] = part
	}

	instructions := make([]domain.Instruction, 0, 2*len(holdings)+1)
	for i, h := range holdings {
		instructions = append(instructions, domain.NewIncreaseAllowance(h.leg.ReceiptToken, h.leg.Pool, redeem[i], nil))
	}
	for i, h := range holdings {
		instructions = append(instructions, domain.NewSwap(h.leg.Pool, h.leg.WithdrawInput, redeem[i], math.ZeroInt(), nil))
	}
	instructions = append(instructions, payout)
	return instructions, nil
}
