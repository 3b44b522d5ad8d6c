package memory

import (
	"context"
	"sync"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// GlobalConfigStore is an in-memory implementation of storage.GlobalConfigStore.
type GlobalConfigStore struct {
	mu  sync.RWMutex
	cfg *domain.GlobalConfig
}

// NewGlobalConfigStore creates a new in-memory global config store.
func NewGlobalConfigStore() *GlobalConfigStore {
	return &GlobalConfigStore{}
}

// Get returns the config. Returns ErrNotFound if it was never stored.
func (s *GlobalConfigStore) Get(_ context.Context) (*domain.GlobalConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, storage.ErrNotFound
	}
	cfgCopy := *s.cfg
	return &cfgCopy, nil
}

// Put creates or replaces the config.
func (s *GlobalConfigStore) Put(_ context.Context, cfg *domain.GlobalConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfgCopy := *cfg
	s.cfg = &cfgCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.GlobalConfigStore = (*GlobalConfigStore)(nil)
