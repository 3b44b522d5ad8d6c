package postgres

import (
	"context"
	"fmt"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// GlobalConfigStore implements storage.GlobalConfigStore using PostgreSQL.
type GlobalConfigStore struct {
	pool *Pool
}

// NewGlobalConfigStore creates a new GlobalConfigStore.
func NewGlobalConfigStore(pool *Pool) *GlobalConfigStore {
	return &GlobalConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GlobalConfigStore = (*GlobalConfigStore)(nil)

// Get returns the config. Returns ErrNotFound if it was never stored.
func (s *GlobalConfigStore) Get(ctx context.Context) (*domain.GlobalConfig, error) {
	query := `SELECT admin, success_fee_bps, fee_receiver FROM global_config WHERE id = 1`

	var (
		cfg domain.GlobalConfig
		bps int32
	)
	err := s.pool.QueryRow(ctx, query).Scan(&cfg.Admin, &bps, &cfg.FeeReceiver)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get global config: %w", err)
	}
	cfg.SuccessFeeBps = uint16(bps)
	return &cfg, nil
}

// Put creates or replaces the config.
func (s *GlobalConfigStore) Put(ctx context.Context, cfg *domain.GlobalConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO global_config (id, admin, success_fee_bps, fee_receiver)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			admin = EXCLUDED.admin,
			success_fee_bps = EXCLUDED.success_fee_bps,
			fee_receiver = EXCLUDED.fee_receiver,
			updated_at = NOW()
	`

	_, err := s.pool.Exec(ctx, query, cfg.Admin, int32(cfg.SuccessFeeBps), cfg.FeeReceiver)
	if err != nil {
		if isCheckViolation(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("put global config: %w", err)
	}
	return nil
}
