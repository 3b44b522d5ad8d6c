package memory

import (
	"context"
	"sync"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// ReceiptAnalyticsStore is an in-memory implementation of storage.ReceiptAnalyticsStore.
type ReceiptAnalyticsStore struct {
	mu     sync.RWMutex
	events []*domain.ReceiptEvent
}

// NewReceiptAnalyticsStore creates a new in-memory receipt analytics store.
func NewReceiptAnalyticsStore() *ReceiptAnalyticsStore {
	return &ReceiptAnalyticsStore{}
}

// InsertEvents appends receipt events.
func (s *ReceiptAnalyticsStore) InsertEvents(_ context.Context, events []*domain.ReceiptEvent) error {
	for _, e := range events {
		if e == nil || e.Launch == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		eventCopy := *e
		s.events = append(s.events, &eventCopy)
	}
	return nil
}

// GetLaunchVolume aggregates the events of one launch.
func (s *ReceiptAnalyticsStore) GetLaunchVolume(_ context.Context, key domain.LaunchKey) (*storage.LaunchVolume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	launch := key.String()
	vol := &storage.LaunchVolume{Launch: launch}
	for _, e := range s.events {
		if e.Launch != launch {
			continue
		}
		switch {
		case e.Purchase != nil:
			vol.Purchases++
			vol.TokensSold += e.Purchase.TokenUnits
			vol.Deposited += e.Purchase.Deposit
		case e.Claim != nil:
			vol.Claims++
			vol.TokensClaimed += e.Claim.TokenUnits
			vol.Refunded += e.Claim.NetRefund
			vol.Fees += e.Claim.Fee
		case e.Settlement != nil:
			vol.Fees += e.Settlement.Fee
		}
	}
	return vol, nil
}

// Publish implements the engine's receipt publisher by appending the event.
func (s *ReceiptAnalyticsStore) Publish(ctx context.Context, e *domain.ReceiptEvent) error {
	return s.InsertEvents(ctx, []*domain.ReceiptEvent{e})
}

// Verify interface compliance at compile time.
var _ storage.ReceiptAnalyticsStore = (*ReceiptAnalyticsStore)(nil)
