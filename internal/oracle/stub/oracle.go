// Package stub provides a configurable in-memory oracle for tests and
// simulations. It can also play the host's role by applying emitted
// instructions to its own balance table.
package stub

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

type balanceKey struct {
	holder domain.Address
	token  domain.Address
}

// Pool describes one registered swap pool: its two sides and the
// linear price of token2 in token1 units (1 token2 = Num/Den token1).
type Pool struct {
	Token1 domain.Address
	Token2 domain.Address
	Num    int64
	Den    int64
}

// Oracle is an in-memory implementation of oracle.Client with settable
// balances, per-pool conversion rates, and error injection.
type Oracle struct {
	mu         sync.RWMutex
	balances   map[balanceKey]math.Int
	pools      map[domain.Address]Pool
	balanceErr error
	convertErr error
}

// NewOracle creates an empty stub oracle.
func NewOracle() *Oracle {
	return &Oracle{
		balances: make(map[balanceKey]math.Int),
		pools:    make(map[domain.Address]Pool),
	}
}

// SetBalance fixes holder's balance in token.
func (o *Oracle) SetBalance(holder, token domain.Address, amount math.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balances[balanceKey{holder, token}] = amount
}

// RegisterPool registers a swap pool and its conversion rate.
func (o *Oracle) RegisterPool(pool domain.Address, p Pool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pools[pool] = p
}

// FailTokenBalance makes every TokenBalance call return err. Pass nil
// to restore normal behavior.
func (o *Oracle) FailTokenBalance(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balanceErr = err
}

// FailConvert makes every Convert call return err. Pass nil to restore
// normal behavior.
func (o *Oracle) FailConvert(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.convertErr = err
}

// TokenBalance returns the fixed balance for (holder, token), zero if unset.
func (o *Oracle) TokenBalance(_ context.Context, holder, token domain.Address) (math.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.balanceErr != nil {
		return math.Int{}, o.balanceErr
	}
	bal, ok := o.balances[balanceKey{holder, token}]
	if !ok {
		return math.ZeroInt(), nil
	}
	return bal, nil
}

// Convert quotes amount of the pool's token2 in token1 units using the
// registered linear rate.
func (o *Oracle) Convert(_ context.Context, pool domain.Address, amount math.Int) (math.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.convertErr != nil {
		return math.Int{}, o.convertErr
	}
	p, ok := o.pools[pool]
	if !ok {
		return math.Int{}, fmt.Errorf("unknown pool %s", pool)
	}
	return amount.Mul(math.NewInt(p.Num)).Quo(math.NewInt(p.Den)), nil
}

// ApplyInstruction executes one emitted instruction against the balance
// table, playing the host's role after a vault transition commits.
// Allowances are accepted and discarded; transfers move balances; swaps
// exchange one pool side for the other at the registered rate.
func (o *Oracle) ApplyInstruction(vault domain.Address, inst domain.Instruction) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch inst.Kind {
	case domain.KindIncreaseAllowance:
		return nil

	case domain.KindTransferFrom:
		t := inst.TransferFrom
		return o.move(t.Token, t.Owner, t.Recipient, t.Amount)

	case domain.KindTransfer:
		t := inst.Transfer
		return o.move(t.Token, vault, t.Recipient, t.Amount)

	case domain.KindSwap:
		s := inst.Swap
		p, ok := o.pools[s.Pool]
		if !ok {
			return fmt.Errorf("unknown pool %s", s.Pool)
		}
		var inToken, outToken domain.Address
		var out math.Int
		switch s.InputToken {
		case domain.SelectToken1:
			inToken, outToken = p.Token1, p.Token2
			out = s.InputAmount.Mul(math.NewInt(p.Den)).Quo(math.NewInt(p.Num))
		case domain.SelectToken2:
			inToken, outToken = p.Token2, p.Token1
			out = s.InputAmount.Mul(math.NewInt(p.Num)).Quo(math.NewInt(p.Den))
		default:
			return fmt.Errorf("unknown token selector %q", s.InputToken)
		}
		if err := o.debit(inToken, vault, s.InputAmount); err != nil {
			return err
		}
		o.credit(outToken, vault, out)
		return nil
	}
	return fmt.Errorf("unknown instruction kind %q", inst.Kind)
}

func (o *Oracle) move(token, from, to domain.Address, amount math.Int) error {
	if err := o.debit(token, from, amount); err != nil {
		return err
	}
	o.credit(token, to, amount)
	return nil
}

func (o *Oracle) debit(token, holder domain.Address, amount math.Int) error {
	key := balanceKey{holder, token}
	bal, ok := o.balances[key]
	if !ok {
		bal = math.ZeroInt()
	}
	if bal.LT(amount) {
		return fmt.Errorf("insufficient %s balance of %s: have %s, want %s", token, holder, bal, amount)
	}
	o.balances[key] = bal.Sub(amount)
	return nil
}

func (o *Oracle) credit(token, holder domain.Address, amount math.Int) {
	key := balanceKey{holder, token}
	bal, ok := o.balances[key]
	if !ok {
		bal = math.ZeroInt()
	}
	o.balances[key] = bal.Add(amount)
}
