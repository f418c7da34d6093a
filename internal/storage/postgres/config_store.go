package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
)

// ConfigStore implements storage.ConfigStore using PostgreSQL. The
// config row is a write-once singleton; the primary key on the
// singleton column turns a second Save into a unique violation.
type ConfigStore struct {
	pool *Pool
}

// NewConfigStore creates a new ConfigStore.
func NewConfigStore(pool *Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ConfigStore = (*ConfigStore)(nil)

// Save persists the config. Returns ErrDuplicateKey if one exists.
func (s *ConfigStore) Save(ctx context.Context, cfg *domain.VaultConfig) error {
	if cfg == nil || cfg.VaultAddress.IsZero() {
		return storage.ErrInvalidInput
	}

	routing, err := json.Marshal(cfg.Routing)
	if err != nil {
		return fmt.Errorf("marshal routing: %w", err)
	}

	query := `
		INSERT INTO vault_config (singleton, vault_address, owner_address, underlying_token, routing, created_at)
		VALUES (TRUE, $1, $2, $3, $4::jsonb, $5)
	`

	_, err = s.pool.Exec(ctx, query,
		cfg.VaultAddress, cfg.Owner, cfg.UnderlyingToken, string(routing), cfg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Load retrieves the config. Returns ErrNotFound if not instantiated.
func (s *ConfigStore) Load(ctx context.Context) (*domain.VaultConfig, error) {
	query := `
		SELECT vault_address, owner_address, underlying_token, routing::text, created_at
		FROM vault_config
		WHERE singleton
	`

	var cfg domain.VaultConfig
	var routing string
	err := s.pool.QueryRow(ctx, query).Scan(
		&cfg.VaultAddress, &cfg.Owner, &cfg.UnderlyingToken, &routing, &cfg.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := json.Unmarshal([]byte(routing), &cfg.Routing); err != nil {
		return nil, fmt.Errorf("unmarshal routing: %w", err)
	}
	return &cfg, nil
}
