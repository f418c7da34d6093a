package dispatch

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/observability"
	"pooled-vault/internal/storage"
	"pooled-vault/internal/vault"
)

// Dispatcher is the message boundary in front of the engine. It owns
// the audit trail and the event broadcast; the engine owns the state
// transition. A failed audit write is logged, not surfaced: the ledger
// is the source of truth.
type Dispatcher struct {
	engine *vault.Engine
	audit  storage.OperationStore
	hub    *EventHub
	logger *log.Logger
}

// NewDispatcher creates a Dispatcher. The audit store and hub may be
// nil, in which case those concerns are skipped.
func NewDispatcher(engine *vault.Engine, audit storage.OperationStore, hub *EventHub, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(os.Stdout, "[dispatch] ", log.LstdFlags)
	}
	return &Dispatcher{
		engine: engine,
		audit:  audit,
		hub:    hub,
		logger: logger,
	}
}

// Instantiate creates the vault once and records the creation in the
// audit trail.
func (d *Dispatcher) Instantiate(ctx context.Context, req *InstantiateRequest) (*InstantiateResponse, error) {
	start := time.Now()
	cfg, err := d.engine.Instantiate(ctx, req.Owner, req.UnderlyingToken, req.Routing)
	observability.RecordOperation("instantiate", statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	d.logger.Printf("vault instantiated at %s (owner %s, %d routing legs)",
		cfg.VaultAddress, cfg.Owner, len(cfg.Routing))

	d.record(ctx, &domain.Operation{
		ID:               newOperationID(),
		Kind:             domain.OpInstantiate,
		Actor:            req.Owner,
		Amount:           math.ZeroInt(),
		Shares:           math.ZeroInt(),
		VaultValue:       math.ZeroInt(),
		TotalSupplyAfter: math.ZeroInt(),
		Instructions:     0,
		Timestamp:        time.Now().UnixMilli(),
	})

	return &InstantiateResponse{Config: cfg}, nil
}

// Deposit prices and commits a deposit, then reports the minted shares
// and the instructions the host must execute.
func (d *Dispatcher) Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error) {
	start := time.Now()
	res, err := d.engine.Deposit(ctx, req.Depositor, req.Amount)
	observability.RecordOperation("deposit", statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	d.logger.Printf("deposit %s by %s: minted %s shares (supply %s)",
		req.Amount, req.Depositor, res.SharesMinted, res.TotalSupply)

	observability.RecordInstructions(len(res.Instructions))
	observability.UpdateTotalSupply(res.TotalSupply)
	observability.UpdateVaultValue(res.VaultValue)

	d.record(ctx, &domain.Operation{
		ID:               newOperationID(),
		Kind:             domain.OpDeposit,
		Actor:            req.Depositor,
		Amount:           req.Amount,
		Shares:           res.SharesMinted,
		VaultValue:       res.VaultValue,
		TotalSupplyAfter: res.TotalSupply,
		Instructions:     len(res.Instructions),
		Timestamp:        time.Now().UnixMilli(),
	})

	return &DepositResponse{
		SharesMinted: res.SharesMinted,
		VaultAddress: res.VaultAddress,
		TotalSupply:  res.TotalSupply,
		Instructions: res.Instructions,
	}, nil
}

// Withdraw prices and commits a redemption, then reports the payout
// and the unwind instructions.
func (d *Dispatcher) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	start := time.Now()
	res, err := d.engine.Withdraw(ctx, req.Holder, req.Shares)
	observability.RecordOperation("withdraw", statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	d.logger.Printf("withdraw %s shares by %s: redeemed %s (supply %s)",
		req.Shares, req.Holder, res.AmountRedeemed, res.TotalSupply)

	observability.RecordInstructions(len(res.Instructions))
	observability.UpdateTotalSupply(res.TotalSupply)
	observability.UpdateVaultValue(res.VaultValue)

	d.record(ctx, &domain.Operation{
		ID:               newOperationID(),
		Kind:             domain.OpWithdraw,
		Actor:            req.Holder,
		Amount:           res.AmountRedeemed,
		Shares:           req.Shares,
		VaultValue:       res.VaultValue,
		TotalSupplyAfter: res.TotalSupply,
		Instructions:     len(res.Instructions),
		Timestamp:        time.Now().UnixMilli(),
	})

	return &WithdrawResponse{
		AmountRedeemed: res.AmountRedeemed,
		TotalSupply:    res.TotalSupply,
		Instructions:   res.Instructions,
	}, nil
}

// TotalSupply answers the supply query.
func (d *Dispatcher) TotalSupply(ctx context.Context) (*TotalSupplyResponse, error) {
	supply, err := d.engine.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	return &TotalSupplyResponse{TotalSupply: supply}, nil
}

// BalanceOf answers the balance query. Absent holders read as zero.
func (d *Dispatcher) BalanceOf(ctx context.Context, holder domain.Address) (*BalanceOfResponse, error) {
	balance, err := d.engine.BalanceOf(ctx, holder)
	if err != nil {
		return nil, err
	}
	return &BalanceOfResponse{Holder: holder, Balance: balance}, nil
}

// VaultInfo echoes the stored config.
func (d *Dispatcher) VaultInfo(ctx context.Context) (*VaultInfoResponse, error) {
	cfg, err := d.engine.Config(ctx)
	if err != nil {
		return nil, err
	}
	return &VaultInfoResponse{Config: cfg}, nil
}

// VaultValue answers the valuation query.
func (d *Dispatcher) VaultValue(ctx context.Context) (*VaultValueResponse, error) {
	value, err := d.engine.VaultValue(ctx)
	if err != nil {
		return nil, err
	}
	return &VaultValueResponse{VaultValue: value}, nil
}

// CheckInvariant verifies share conservation.
func (d *Dispatcher) CheckInvariant(ctx context.Context) (*InvariantResponse, error) {
	report, err := d.engine.CheckInvariant(ctx)
	if err != nil {
		return nil, err
	}
	return &InvariantResponse{
		TotalSupply: report.TotalSupply,
		SumBalances: report.SumBalances,
		Consistent:  report.Consistent,
	}, nil
}

// record persists the audit entry and broadcasts it to subscribers.
func (d *Dispatcher) record(ctx context.Context, op *domain.Operation) {
	if d.audit != nil {
		if err := d.audit.Insert(ctx, op); err != nil {
			d.logger.Printf("audit insert failed for %s %s: %v", op.Kind, op.ID, err)
		}
	}
	if d.hub != nil {
		d.hub.Broadcast(op)
	}
	observability.DefaultMetrics.LastSuccessfulOperation.Set(float64(op.Timestamp) / 1000)
}

// newOperationID returns a time-ordered UUID so audit rows sort by
// creation even within one millisecond.
func newOperationID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// errorCode names the failure class for error bodies and metric labels.
func errorCode(err error) string {
	switch {
	case errors.Is(err, vault.ErrValidation):
		return "validation_error"
	case errors.Is(err, vault.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, vault.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, vault.ErrArithmetic):
		return "arithmetic_error"
	case errors.Is(err, vault.ErrExternalQuery):
		return "external_query_error"
	case errors.Is(err, vault.ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, vault.ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errorCode(err)
}
