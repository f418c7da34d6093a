package memory

import (
	"context"
	"sync"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// OperationAnalyticsStore is an in-memory implementation of
// storage.OperationAnalyticsStore. It mirrors the ClickHouse sink's
// bulk-oriented contract so exporters can be tested without a running
// database.
type OperationAnalyticsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Operation // keyed by operation ID
}

// NewOperationAnalyticsStore creates a new in-memory analytics sink.
func NewOperationAnalyticsStore() *OperationAnalyticsStore {
	return &OperationAnalyticsStore{
		data: make(map[string]*domain.Operation),
	}
}

// InsertBulk adds multiple operations. Fails the entire batch if any
// operation_id already exists, in the sink or within the batch itself.
func (s *OperationAnalyticsStore) InsertBulk(_ context.Context, ops []*domain.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchIDs := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if op == nil || op.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[op.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchIDs[op.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchIDs[op.ID] = struct{}{}
	}

	// Second pass: insert all
	for _, op := range ops {
		opCopy := *op
		s.data[op.ID] = &opCopy
	}

	return nil
}

// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
func (s *OperationAnalyticsStore) GetByActor(_ context.Context, actor domain.Address) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.Actor == actor {
			opCopy := *op
			result = append(result, &opCopy)
		}
	}

	sortOperations(result)
	return result, nil
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *OperationAnalyticsStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.Timestamp >= start && op.Timestamp <= end {
			opCopy := *op
			result = append(result, &opCopy)
		}
	}

	sortOperations(result)
	return result, nil
}

// LatestTimestamp returns the newest stored operation timestamp, or zero
// when the sink is empty.
func (s *OperationAnalyticsStore) LatestTimestamp(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for _, op := range s.data {
		if op.Timestamp > latest {
			latest = op.Timestamp
		}
	}
	return latest, nil
}

var _ storage.OperationAnalyticsStore = (*OperationAnalyticsStore)(nil)
