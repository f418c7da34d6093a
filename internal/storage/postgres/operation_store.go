package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// OperationStore implements storage.OperationStore using PostgreSQL.
type OperationStore struct {
	pool *Pool
}

// NewOperationStore creates a new OperationStore.
func NewOperationStore(pool *Pool) *OperationStore {
	return &OperationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OperationStore = (*OperationStore)(nil)

// Insert adds a new operation record. Returns ErrDuplicateKey if id exists.
func (s *OperationStore) Insert(ctx context.Context, op *domain.Operation) error {
	if op == nil || op.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO operations (
			operation_id, kind, actor,
			amount, shares, vault_value, total_supply_after,
			instruction_count, ts
		) VALUES (
			$1, $2, $3,
			$4::numeric, $5::numeric, $6::numeric, $7::numeric,
			$8, $9
		)
	`

	_, err := s.pool.Exec(ctx, query,
		op.ID, op.Kind, op.Actor,
		op.Amount.String(), op.Shares.String(), op.VaultValue.String(), op.TotalSupplyAfter.String(),
		op.Instructions, op.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
func (s *OperationStore) GetByID(ctx context.Context, id string) (*domain.Operation, error) {
	query := `
		SELECT
			operation_id, kind, actor,
			amount::text, shares::text, vault_value::text, total_supply_after::text,
			instruction_count, ts
		FROM operations
		WHERE operation_id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	op, err := scanOperation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get operation by id: %w", err)
	}
	return op, nil
}

// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
func (s *OperationStore) GetByActor(ctx context.Context, actor domain.Address) ([]*domain.Operation, error) {
	query := `
		SELECT
			operation_id, kind, actor,
			amount::text, shares::text, vault_value::text, total_supply_after::text,
			instruction_count, ts
		FROM operations
		WHERE actor = $1
		ORDER BY ts ASC, operation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, actor)
	if err != nil {
		return nil, fmt.Errorf("get operations by actor: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *OperationStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Operation, error) {
	query := `
		SELECT
			operation_id, kind, actor,
			amount::text, shares::text, vault_value::text, total_supply_after::text,
			instruction_count, ts
		FROM operations
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, operation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get operations by time range: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// scanOperation scans a single row into an Operation.
func scanOperation(row pgx.Row) (*domain.Operation, error) {
	var op domain.Operation
	var amount, shares, vaultValue, supplyAfter string

	err := row.Scan(
		&op.ID, &op.Kind, &op.Actor,
		&amount, &shares, &vaultValue, &supplyAfter,
		&op.Instructions, &op.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if op.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	if op.Shares, err = parseNumeric(shares); err != nil {
		return nil, err
	}
	if op.VaultValue, err = parseNumeric(vaultValue); err != nil {
		return nil, err
	}
	if op.TotalSupplyAfter, err = parseNumeric(supplyAfter); err != nil {
		return nil, err
	}

	return &op, nil
}

// scanOperations scans multiple rows into a slice of Operations.
func scanOperations(rows pgx.Rows) ([]*domain.Operation, error) {
	var ops []*domain.Operation

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}

	return ops, nil
}
