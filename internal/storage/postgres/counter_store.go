package postgres

import (
	"context"
	"fmt"
	"math"

	"meme-presale/internal/storage"
)

// CounterStore implements storage.CounterStore using PostgreSQL.
type CounterStore struct {
	pool *Pool
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(pool *Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CounterStore = (*CounterStore)(nil)

// Next returns the next unused index for creator and consumes it.
// The upsert is a single statement, so concurrent callers never share an index.
func (s *CounterStore) Next(ctx context.Context, creator string) (uint32, error) {
	if creator == "" {
		return 0, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO creator_counters (creator, next_index) VALUES ($1, 1)
		ON CONFLICT (creator) DO UPDATE SET next_index = creator_counters.next_index + 1
		RETURNING next_index - 1
	`

	var idx int64
	if err := s.pool.QueryRow(ctx, query, creator).Scan(&idx); err != nil {
		return 0, fmt.Errorf("next launch index: %w", err)
	}
	if idx > math.MaxUint32 {
		return 0, fmt.Errorf("launch index for %s exhausted", creator)
	}
	return uint32(idx), nil
}

// Peek returns the next index without consuming it.
func (s *CounterStore) Peek(ctx context.Context, creator string) (uint32, error) {
	query := `SELECT COALESCE(MAX(next_index), 0) FROM creator_counters WHERE creator = $1`

	var idx int64
	if err := s.pool.QueryRow(ctx, query, creator).Scan(&idx); err != nil {
		return 0, fmt.Errorf("peek launch index: %w", err)
	}
	return uint32(idx), nil
}
