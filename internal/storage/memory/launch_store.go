package memory

import (
	"context"
	"sort"
	"sync"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// LaunchStore is an in-memory implementation of storage.LaunchStore.
type LaunchStore struct {
	mu        sync.RWMutex
	data      map[domain.LaunchKey]*domain.Launch
	byAddress map[string]domain.LaunchKey
}

// NewLaunchStore creates a new in-memory launch store.
func NewLaunchStore() *LaunchStore {
	return &LaunchStore{
		data:      make(map[domain.LaunchKey]*domain.Launch),
		byAddress: make(map[string]domain.LaunchKey),
	}
}

// Insert adds a new launch. Returns ErrDuplicateKey if (creator, index) or address exists.
func (s *LaunchStore) Insert(_ context.Context, l *domain.Launch) error {
	if l == nil || l.Creator == "" || l.Address == "" || !l.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := l.Key()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byAddress[l.Address]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	launchCopy := *l
	s.data[key] = &launchCopy
	s.byAddress[l.Address] = key
	return nil
}

// Get retrieves a launch by key. Returns ErrNotFound if not exists.
func (s *LaunchStore) Get(_ context.Context, key domain.LaunchKey) (*domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	launchCopy := *l
	return &launchCopy, nil
}

// GetByAddress retrieves a launch by its derived address.
func (s *LaunchStore) GetByAddress(_ context.Context, address string) (*domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, exists := s.byAddress[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	launchCopy := *s.data[key]
	return &launchCopy, nil
}

// ListByCreator retrieves all launches of a creator, ordered by index ASC.
func (s *LaunchStore) ListByCreator(_ context.Context, creator string) ([]*domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Launch
	for _, l := range s.data {
		if l.Creator == creator {
			launchCopy := *l
			result = append(result, &launchCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})

	return result, nil
}

// ListByStatus retrieves all launches with a status, ordered by created_time ASC.
func (s *LaunchStore) ListByStatus(_ context.Context, status domain.LaunchStatus) ([]*domain.Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Launch
	for _, l := range s.data {
		if l.Status == status {
			launchCopy := *l
			result = append(result, &launchCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedTime != result[j].CreatedTime {
			return result[i].CreatedTime < result[j].CreatedTime
		}
		return result[i].Key().String() < result[j].Key().String()
	})

	return result, nil
}

// UpdateStatus sets status to `to` only if the stored status equals `from`.
func (s *LaunchStore) UpdateStatus(_ context.Context, key domain.LaunchKey, from, to domain.LaunchStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	if l.Status != from {
		return storage.ErrStatusConflict
	}
	l.Status = to
	return nil
}

// SetToken assigns the mint address once.
func (s *LaunchStore) SetToken(_ context.Context, key domain.LaunchKey, tokenID string) error {
	if tokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	if l.TokenID != "" {
		return storage.ErrTokenAlreadySet
	}
	l.TokenID = tokenID
	return nil
}

// SetHalted latches the halted flag.
func (s *LaunchStore) SetHalted(_ context.Context, key domain.LaunchKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	l.Halted = true
	return nil
}

// MarkSettled sets the settled flag only if it is unset.
func (s *LaunchStore) MarkSettled(_ context.Context, key domain.LaunchKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}
	if l.Settled {
		return storage.ErrStatusConflict
	}
	l.Settled = true
	return nil
}

// Verify interface compliance at compile time.
var _ storage.LaunchStore = (*LaunchStore)(nil)
