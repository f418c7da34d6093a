package storage

import (
	"context"

	"cosmossdk.io/math"

	"pooled-vault/internal/domain"
)

// LedgerStore provides access to share balances and the total-supply
// counter. Business invariants (non-negativity after subtraction,
// supply == sum of balances) are enforced by the vault engine before
// any write lands here.
type LedgerStore interface {
	// Balance returns the holder's share balance. Absent holders read as zero.
	Balance(ctx context.Context, holder domain.Address) (math.Int, error)

	// SetBalance overwrites the holder's share balance. Value must be >= 0.
	SetBalance(ctx context.Context, holder domain.Address, value math.Int) error

	// TotalSupply returns the outstanding share supply. Zero before the first write.
	TotalSupply(ctx context.Context) (math.Int, error)

	// SetTotalSupply overwrites the outstanding share supply. Value must be >= 0.
	SetTotalSupply(ctx context.Context, value math.Int) error

	// Commit applies one holder balance and the total supply as a single
	// atomic write. Either both land or neither does.
	Commit(ctx context.Context, holder domain.Address, balance, totalSupply math.Int) error

	// SumBalances returns the sum of every stored balance.
	SumBalances(ctx context.Context) (math.Int, error)
}

// ConfigStore provides access to the per-deployment vault config.
// Write-once: the config is immutable after instantiate.
type ConfigStore interface {
	// Save persists the config. Returns ErrDuplicateKey if one exists.
	Save(ctx context.Context, cfg *domain.VaultConfig) error

	// Load retrieves the config. Returns ErrNotFound if not instantiated.
	Load(ctx context.Context) (*domain.VaultConfig, error)
}

// OperationStore provides access to the operation audit trail.
type OperationStore interface {
	// Insert adds a new operation record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, op *domain.Operation) error

	// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Operation, error)

	// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
	GetByActor(ctx context.Context, actor domain.Address) ([]*domain.Operation, error)

	// GetByTimeRange retrieves operations within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Operation, error)
}

// OperationAnalyticsStore is the columnar sink operations are exported
// to for history queries. Unlike OperationStore it is bulk-oriented:
// the exporter copies batches from the transactional store.
type OperationAnalyticsStore interface {
	// InsertBulk adds multiple operations. Fails the entire batch if any
	// operation_id already exists.
	InsertBulk(ctx context.Context, ops []*domain.Operation) error

	// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
	GetByActor(ctx context.Context, actor domain.Address) ([]*domain.Operation, error)

	// GetByTimeRange retrieves operations within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Operation, error)

	// LatestTimestamp returns the newest stored operation timestamp, or
	// zero when the sink is empty. Exporters use it as a high-water mark.
	LatestTimestamp(ctx context.Context) (int64, error)
}
