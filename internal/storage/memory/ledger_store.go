package memory

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu       sync.RWMutex
	balances map[domain.Address]math.Int
	supply   math.Int
}

// NewLedgerStore creates a new in-memory ledger store with zero supply.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		balances: make(map[domain.Address]math.Int),
		supply:   math.ZeroInt(),
	}
}

// Balance returns the holder's share balance. Absent holders read as zero.
func (s *LedgerStore) Balance(_ context.Context, holder domain.Address) (math.Int, error) {
	if holder.IsZero() {
		return math.Int{}, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bal, ok := s.balances[holder]
	if !ok {
		return math.ZeroInt(), nil
	}
	return bal, nil
}

// SetBalance overwrites the holder's share balance.
func (s *LedgerStore) SetBalance(_ context.Context, holder domain.Address, value math.Int) error {
	if holder.IsZero() || value.IsNil() || value.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[holder] = value
	return nil
}

// TotalSupply returns the outstanding share supply.
func (s *LedgerStore) TotalSupply(_ context.Context) (math.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supply, nil
}

// SetTotalSupply overwrites the outstanding share supply.
func (s *LedgerStore) SetTotalSupply(_ context.Context, value math.Int) error {
	if value.IsNil() || value.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.supply = value
	return nil
}

// Commit applies one holder balance and the total supply under a
// single lock acquisition so no reader observes one without the other.
func (s *LedgerStore) Commit(_ context.Context, holder domain.Address, balance, totalSupply math.Int) error {
	if holder.IsZero() || balance.IsNil() || balance.IsNegative() || totalSupply.IsNil() || totalSupply.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[holder] = balance
	s.supply = totalSupply
	return nil
}

// SumBalances returns the sum of every stored balance.
func (s *LedgerStore) SumBalances(_ context.Context) (math.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := math.ZeroInt()
	for _, bal := range s.balances {
		var err error
		sum, err = sum.SafeAdd(bal)
		if err != nil {
			return math.Int{}, fmt.Errorf("sum balances: %w", err)
		}
	}
	return sum, nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
