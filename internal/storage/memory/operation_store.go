package memory

import (
	"context"
	"sort"
	"sync"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// OperationStore is an in-memory implementation of storage.OperationStore.
type OperationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Operation // keyed by operation ID
}

// NewOperationStore creates a new in-memory operation store.
func NewOperationStore() *OperationStore {
	return &OperationStore{
		data: make(map[string]*domain.Operation),
	}
}

// Insert adds a new operation record. Returns ErrDuplicateKey if id exists.
func (s *OperationStore) Insert(_ context.Context, op *domain.Operation) error {
	if op == nil || op.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[op.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *op
	s.data[op.ID] = &copy
	return nil
}

// GetByID retrieves an operation by its ID. Returns ErrNotFound if not exists.
func (s *OperationStore) GetByID(_ context.Context, id string) (*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *op
	return &copy, nil
}

// GetByActor retrieves all operations for an actor, ordered by timestamp ASC.
func (s *OperationStore) GetByActor(_ context.Context, actor domain.Address) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.Actor == actor {
			copy := *op
			result = append(result, &copy)
		}
	}

	sortOperations(result)
	return result, nil
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *OperationStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Operation
	for _, op := range s.data {
		if op.Timestamp >= start && op.Timestamp <= end {
			copy := *op
			result = append(result, &copy)
		}
	}

	sortOperations(result)
	return result, nil
}

func sortOperations(ops []*domain.Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Timestamp != ops[j].Timestamp {
			return ops[i].Timestamp < ops[j].Timestamp
		}
		return ops[i].ID < ops[j].ID
	})
}

var _ storage.OperationStore = (*OperationStore)(nil)
