package memory

import (
	"context"
	"sync"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// ConfigStore is an in-memory implementation of storage.ConfigStore.
// Holds at most one config; the vault is a single-deployment system.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg *domain.VaultConfig
}

// NewConfigStore creates a new in-memory config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// Save persists the config. Returns ErrDuplicateKey if one exists.
func (s *ConfigStore) Save(_ context.Context, cfg *domain.VaultConfig) error {
	if cfg == nil || cfg.VaultAddress.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return storage.ErrDuplicateKey
	}

	s.cfg = copyConfig(cfg)
	return nil
}

// Load retrieves the config. Returns ErrNotFound if not instantiated.
func (s *ConfigStore) Load(_ context.Context) (*domain.VaultConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, storage.ErrNotFound
	}
	return copyConfig(s.cfg), nil
}

// copyConfig deep-copies a config so callers cannot mutate stored state.
func copyConfig(cfg *domain.VaultConfig) *domain.VaultConfig {
	out := *cfg
	if len(cfg.Routing) > 0 {
		out.Routing = make(domain.RoutingTable, len(cfg.Routing))
		copy(out.Routing, cfg.Routing)
	}
	return &out
}

var _ storage.ConfigStore = (*ConfigStore)(nil)
