package clickhouse

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// OperationStore implements storage.OperationAnalyticsStore using
// ClickHouse. Amount columns are stored as strings: the values are
// 256-bit integers and the sink exists for history queries, not
// arithmetic.
type OperationStore struct {
	conn *Conn
}

// NewOperationStore creates a new OperationStore.
func NewOperationStore(conn *Conn) *OperationStore {
	return &OperationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OperationAnalyticsStore = (*OperationStore)(nil)

// InsertBulk adds multiple operations. Fails entire batch on duplicate operation_id.
func (s *OperationStore) InsertBulk(ctx context.Context, ops []*domain.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, op := range ops {
		if _, exists := seen[op.ID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[op.ID] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, op := range ops {
		exists, err := s.exists(ctx, op.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO vault_operations (
			operation_id, kind, actor,
			amount, shares, vault_value, total_supply_after,
			instruction_count, ts
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, op := range ops {
		err = batch.Append(
			op.ID, string(op.Kind), string(op.Actor),
			op.Amount.String(), op.Shares.String(), op.VaultValue.String(), op.TotalSupplyAfter.String(),
			uint32(op.Instructions), uint64(op.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
func (s *OperationStore) GetByActor(ctx context.Context, actor domain.Address) ([]*domain.Operation, error) {
	query := `
		SELECT operation_id, kind, actor,
		       amount, shares, vault_value, total_supply_after,
		       instruction_count, ts
		FROM vault_operations
		WHERE actor = ?
		ORDER BY ts ASC, operation_id ASC
	`

	rows, err := s.conn.Query(ctx, query, string(actor))
	if err != nil {
		return nil, fmt.Errorf("query by actor: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *OperationStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Operation, error) {
	query := `
		SELECT operation_id, kind, actor,
		       amount, shares, vault_value, total_supply_after,
		       instruction_count, ts
		FROM vault_operations
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC, operation_id ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// LatestTimestamp returns the newest stored timestamp, zero when empty.
func (s *OperationStore) LatestTimestamp(ctx context.Context) (int64, error) {
	query := `SELECT max(ts) FROM vault_operations`

	var ts uint64
	if err := s.conn.QueryRow(ctx, query).Scan(&ts); err != nil {
		return 0, fmt.Errorf("query latest timestamp: %w", err)
	}
	return int64(ts), nil
}

// exists checks if an operation with the given id exists.
func (s *OperationStore) exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT count(*) FROM vault_operations WHERE operation_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanOperations scans multiple rows into a slice of Operations.
func scanOperations(rows chRows) ([]*domain.Operation, error) {
	var ops []*domain.Operation

	for rows.Next() {
		var op domain.Operation
		var kind, actor, amount, shares, vaultValue, supplyAfter string
		var instructions uint32
		var ts uint64

		err := rows.Scan(
			&op.ID, &kind, &actor,
			&amount, &shares, &vaultValue, &supplyAfter,
			&instructions, &ts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}

		op.Kind = domain.OperationKind(kind)
		op.Actor = domain.Address(actor)
		if op.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if op.Shares, err = parseAmount(shares); err != nil {
			return nil, err
		}
		if op.VaultValue, err = parseAmount(vaultValue); err != nil {
			return nil, err
		}
		if op.TotalSupplyAfter, err = parseAmount(supplyAfter); err != nil {
			return nil, err
		}
		op.Instructions = int(instructions)
		op.Timestamp = int64(ts)

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}

	return ops, nil
}

// parseAmount parses an amount column stored as a decimal string.
func parseAmount(s string) (math.Int, error) {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("malformed amount %q", s)
	}
	return v, nil
}
