package postgres

import (
	"context"
	"math/big"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

func TestLedgerStore_BalanceAbsentHolder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	// A holder with no row reads as zero, not as an error
	balance, err := store.Balance(ctx, domain.Address("nobody"))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestLedgerStore_SetAndGetBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)
	alice := domain.Address("alice")

	// Insert
	err := store.SetBalance(ctx, alice, math.NewInt(1000))
	require.NoError(t, err)

	balance, err := store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(1000), balance)

	// Overwrite through the same upsert
	err = store.SetBalance(ctx, alice, math.NewInt(2500))
	require.NoError(t, err)

	balance, err = store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(2500), balance)
}

func TestLedgerStore_SetBalanceValidation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	// Empty holder
	err := store.SetBalance(ctx, domain.Address(""), math.NewInt(1))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// Nil amount
	err = store.SetBalance(ctx, domain.Address("alice"), math.Int{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// Negative amount
	err = store.SetBalance(ctx, domain.Address("alice"), math.NewInt(-5))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLedgerStore_TotalSupplyBeforeFirstWrite(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
}

func TestLedgerStore_SetTotalSupply(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	err := store.SetTotalSupply(ctx, math.NewInt(150))
	require.NoError(t, err)

	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(150), supply)

	// Overwrite
	err = store.SetTotalSupply(ctx, math.NewInt(95))
	require.NoError(t, err)

	supply, err = store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(95), supply)

	// Negative supply rejected
	err = store.SetTotalSupply(ctx, math.NewInt(-1))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLedgerStore_Commit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)
	alice := domain.Address("alice")
	bob := domain.Address("bob")

	// A deposit commit writes the holder balance and supply together
	err := store.Commit(ctx, alice, math.NewInt(100), math.NewInt(100))
	require.NoError(t, err)

	err = store.Commit(ctx, bob, math.NewInt(50), math.NewInt(150))
	require.NoError(t, err)

	aliceBalance, err := store.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(100), aliceBalance)

	bobBalance, err := store.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(50), bobBalance)

	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(150), supply)
}

func TestLedgerStore_CommitValidation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	err := store.Commit(ctx, domain.Address(""), math.NewInt(1), math.NewInt(1))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Commit(ctx, domain.Address("alice"), math.Int{}, math.NewInt(1))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Commit(ctx, domain.Address("alice"), math.NewInt(1), math.NewInt(-1))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestLedgerStore_SumBalances(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	// Empty ledger sums to zero
	sum, err := store.SumBalances(ctx)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())

	err = store.SetBalance(ctx, domain.Address("alice"), math.NewInt(100))
	require.NoError(t, err)
	err = store.SetBalance(ctx, domain.Address("bob"), math.NewInt(200))
	require.NoError(t, err)

	sum, err = store.SumBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, math.NewInt(300), sum)
}

func TestLedgerStore_LargeAmounts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)
	whale := domain.Address("whale")

	// Largest 256-bit value must survive the NUMERIC(78, 0) round trip
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	huge := math.NewIntFromBigInt(max)

	err := store.SetBalance(ctx, whale, huge)
	require.NoError(t, err)

	balance, err := store.Balance(ctx, whale)
	require.NoError(t, err)
	assert.Equal(t, huge.String(), balance.String())

	err = store.SetTotalSupply(ctx, huge)
	require.NoError(t, err)

	supply, err := store.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, huge.String(), supply.String())
}
