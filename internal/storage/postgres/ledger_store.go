package postgres

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

const upsertBalanceQuery = `
	INSERT INTO ledger_balances (holder, balance)
	VALUES ($1, $2::numeric)
	ON CONFLICT (holder) DO UPDATE SET balance = EXCLUDED.balance
`

const upsertSupplyQuery = `
	INSERT INTO ledger_supply (singleton, total_supply)
	VALUES (TRUE, $1::numeric)
	ON CONFLICT (singleton) DO UPDATE SET total_supply = EXCLUDED.total_supply
`

// Balance returns the holder's share balance. Absent holders read as zero.
func (s *LedgerStore) Balance(ctx context.Context, holder domain.Address) (math.Int, error) {
	if holder.IsZero() {
		return math.Int{}, storage.ErrInvalidInput
	}

	query := `SELECT balance::text FROM ledger_balances WHERE holder = $1`

	var raw string
	err := s.pool.QueryRow(ctx, query, holder).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, fmt.Errorf("get balance: %w", err)
	}
	return parseNumeric(raw)
}

// SetBalance overwrites the holder's share balance.
func (s *LedgerStore) SetBalance(ctx context.Context, holder domain.Address, value math.Int) error {
	if holder.IsZero() || value.IsNil() || value.IsNegative() {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, upsertBalanceQuery, holder, value.String()); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// TotalSupply returns the outstanding share supply. Zero before the first write.
func (s *LedgerStore) TotalSupply(ctx context.Context) (math.Int, error) {
	query := `SELECT total_supply::text FROM ledger_supply WHERE singleton`

	var raw string
	err := s.pool.QueryRow(ctx, query).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, fmt.Errorf("get total supply: %w", err)
	}
	return parseNumeric(raw)
}

// SetTotalSupply overwrites the outstanding share supply.
func (s *LedgerStore) SetTotalSupply(ctx context.Context, value math.Int) error {
	if value.IsNil() || value.IsNegative() {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, upsertSupplyQuery, value.String()); err != nil {
		return fmt.Errorf("set total supply: %w", err)
	}
	return nil
}

// Commit applies one holder balance and the total supply in a single
// transaction. Either both writes land or neither does.
func (s *LedgerStore) Commit(ctx context.Context, holder domain.Address, balance, totalSupply math.Int) error {
	if holder.IsZero() {
		return storage.ErrInvalidInput
	}
	if balance.IsNil() || balance.IsNegative() || totalSupply.IsNil() || totalSupply.IsNegative() {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertBalanceQuery, holder, balance.String()); err != nil {
		return fmt.Errorf("commit balance: %w", err)
	}
	if _, err := tx.Exec(ctx, upsertSupplyQuery, totalSupply.String()); err != nil {
		return fmt.Errorf("commit total supply: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SumBalances returns the sum of every stored balance.
func (s *LedgerStore) SumBalances(ctx context.Context) (math.Int, error) {
	query := `SELECT COALESCE(SUM(balance), 0)::text FROM ledger_balances`

	var raw string
	if err := s.pool.QueryRow(ctx, query).Scan(&raw); err != nil {
		return math.Int{}, fmt.Errorf("sum balances: %w", err)
	}
	return parseNumeric(raw)
}
