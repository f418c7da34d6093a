package postgres

import (
	"context"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

func createTestOperation(id string, kind domain.OperationKind, actor string, ts int64) *domain.Operation {
	return &domain.Operation{
		ID:               id,
		Kind:             kind,
		Actor:            domain.Address(actor),
		Amount:           math.NewInt(100),
		Shares:           math.NewInt(100),
		VaultValue:       math.NewInt(1000),
		TotalSupplyAfter: math.NewInt(1100),
		Instructions:     1,
		Timestamp:        ts,
	}
}

func TestOperationStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	op := createTestOperation("op-001", domain.OpDeposit, "alice", 1000)

	// Insert
	err := store.Insert(ctx, op)
	require.NoError(t, err)

	// GetByID
	retrieved, err := store.GetByID(ctx, "op-001")
	require.NoError(t, err)

	assert.Equal(t, op.ID, retrieved.ID)
	assert.Equal(t, op.Kind, retrieved.Kind)
	assert.Equal(t, op.Actor, retrieved.Actor)
	assert.Equal(t, op.Amount, retrieved.Amount)
	assert.Equal(t, op.Shares, retrieved.Shares)
	assert.Equal(t, op.VaultValue, retrieved.VaultValue)
	assert.Equal(t, op.TotalSupplyAfter, retrieved.TotalSupplyAfter)
	assert.Equal(t, op.Instructions, retrieved.Instructions)
	assert.Equal(t, op.Timestamp, retrieved.Timestamp)
}

func TestOperationStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	op := createTestOperation("op-dup-001", domain.OpDeposit, "alice", 1000)

	err := store.Insert(ctx, op)
	require.NoError(t, err)

	// Same operation_id again
	err = store.Insert(ctx, op)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOperationStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	_, err := store.GetByID(ctx, "nonexistent-op")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOperationStore_InsertValidation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	op := createTestOperation("", domain.OpDeposit, "alice", 1000)
	err = store.Insert(ctx, op)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOperationStore_GetByActor(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	ops := []*domain.Operation{
		createTestOperation("actor-op-001", domain.OpDeposit, "alice", 1000),
		createTestOperation("actor-op-002", domain.OpWithdraw, "alice", 2000),
		createTestOperation("actor-op-003", domain.OpDeposit, "bob", 1500),
	}
	for _, op := range ops {
		err := store.Insert(ctx, op)
		require.NoError(t, err)
	}

	// Only alice's operations, oldest first
	result, err := store.GetByActor(ctx, domain.Address("alice"))
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "actor-op-001", result[0].ID)
	assert.Equal(t, "actor-op-002", result[1].ID)
	for _, op := range result {
		assert.Equal(t, domain.Address("alice"), op.Actor)
	}
}

func TestOperationStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	ops := []*domain.Operation{
		createTestOperation("range-op-001", domain.OpDeposit, "alice", 1000),
		createTestOperation("range-op-002", domain.OpDeposit, "bob", 2000),
		createTestOperation("range-op-003", domain.OpWithdraw, "alice", 3000),
	}
	for _, op := range ops {
		err := store.Insert(ctx, op)
		require.NoError(t, err)
	}

	// Bounds are inclusive on both ends
	result, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "range-op-001", result[0].ID)
	assert.Equal(t, "range-op-002", result[1].ID)
}

func TestOperationStore_Ordering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	// Insert out of order, with a timestamp tie broken by operation_id
	ops := []*domain.Operation{
		createTestOperation("order-op-003", domain.OpDeposit, "alice", 2000),
		createTestOperation("order-op-002", domain.OpDeposit, "alice", 1000),
		createTestOperation("order-op-001", domain.OpDeposit, "alice", 1000),
	}
	for _, op := range ops {
		err := store.Insert(ctx, op)
		require.NoError(t, err)
	}

	result, err := store.GetByActor(ctx, domain.Address("alice"))
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, "order-op-001", result[0].ID)
	assert.Equal(t, "order-op-002", result[1].ID)
	assert.Equal(t, "order-op-003", result[2].ID)
}

func TestOperationStore_EmptyResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOperationStore(pool)

	result, err := store.GetByActor(ctx, domain.Address("nobody"))
	require.NoError(t, err)
	assert.Empty(t, result)

	result, err = store.GetByTimeRange(ctx, 0, 9999)
	require.NoError(t, err)
	assert.Empty(t, result)
}
