package memory

import (
	"context"
	"sync"

	"meme-presale/internal/storage"
)

// CounterStore is an in-memory implementation of storage.CounterStore.
type CounterStore struct {
	mu   sync.Mutex
	next map[string]uint32 // creator -> next index
}

// NewCounterStore creates a new in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		next: make(map[string]uint32),
	}
}

// Next returns the next unused index for creator and consumes it.
func (s *CounterStore) Next(_ context.Context, creator string) (uint32, error) {
	if creator == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.next[creator]
	s.next[creator] = idx + 1
	return idx, nil
}

// Peek returns the next index without consuming it.
func (s *CounterStore) Peek(_ context.Context, creator string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next[creator], nil
}

// Verify interface compliance at compile time.
var _ storage.CounterStore = (*CounterStore)(nil)
