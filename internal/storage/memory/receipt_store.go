package memory

import (
	"context"
	"sort"
	"sync"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

type referenceKey struct {
	launch    domain.LaunchKey
	kind      domain.ReceiptKind
	reference string
}

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu          sync.RWMutex
	ids         map[string]struct{}
	references  map[referenceKey]string // receipt_id by reference
	purchases   map[domain.LaunchKey][]*domain.PurchaseReceipt
	claims      map[domain.LaunchKey][]*domain.ClaimReceipt
	settlements map[domain.LaunchKey]*domain.SettlementReceipt
}

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		ids:         make(map[string]struct{}),
		references:  make(map[referenceKey]string),
		purchases:   make(map[domain.LaunchKey][]*domain.PurchaseReceipt),
		claims:      make(map[domain.LaunchKey][]*domain.ClaimReceipt),
		settlements: make(map[domain.LaunchKey]*domain.SettlementReceipt),
	}
}

// claimKeys checks receipt_id and reference uniqueness. Caller holds the write lock.
func (s *ReceiptStore) claimKeys(id string, ref referenceKey) error {
	if _, exists := s.ids[id]; exists {
		return storage.ErrDuplicateKey
	}
	if ref.reference != "" {
		if _, exists := s.references[ref]; exists {
			return storage.ErrDuplicateKey
		}
		s.references[ref] = id
	}
	s.ids[id] = struct{}{}
	return nil
}

// InsertPurchase adds a purchase receipt.
func (s *ReceiptStore) InsertPurchase(_ context.Context, r *domain.PurchaseReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := referenceKey{launch: r.Launch, kind: domain.ReceiptKindPurchase, reference: r.Reference}
	if err := s.claimKeys(r.ReceiptID, ref); err != nil {
		return err
	}

	receiptCopy := *r
	s.purchases[r.Launch] = append(s.purchases[r.Launch], &receiptCopy)
	return nil
}

// InsertClaim adds a claim receipt.
func (s *ReceiptStore) InsertClaim(_ context.Context, r *domain.ClaimReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := referenceKey{launch: r.Launch, kind: domain.ReceiptKindClaim, reference: r.Reference}
	if err := s.claimKeys(r.ReceiptID, ref); err != nil {
		return err
	}

	receiptCopy := *r
	s.claims[r.Launch] = append(s.claims[r.Launch], &receiptCopy)
	return nil
}

// InsertSettlement adds the settlement receipt.
func (s *ReceiptStore) InsertSettlement(_ context.Context, r *domain.SettlementReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlements[r.Launch]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.ids[r.ReceiptID]; exists {
		return storage.ErrDuplicateKey
	}

	receiptCopy := *r
	s.settlements[r.Launch] = &receiptCopy
	s.ids[r.ReceiptID] = struct{}{}
	return nil
}

// GetPurchases retrieves purchase receipts of a launch, ordered by timestamp ASC.
func (s *ReceiptStore) GetPurchases(_ context.Context, key domain.LaunchKey) ([]*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PurchaseReceipt, 0, len(s.purchases[key]))
	for _, r := range s.purchases[key] {
		receiptCopy := *r
		result = append(result, &receiptCopy)
	}

	// Stable sort keeps insertion order within a timestamp
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetClaims retrieves claim receipts of a launch, ordered by timestamp ASC.
func (s *ReceiptStore) GetClaims(_ context.Context, key domain.LaunchKey) ([]*domain.ClaimReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ClaimReceipt, 0, len(s.claims[key]))
	for _, r := range s.claims[key] {
		receiptCopy := *r
		result = append(result, &receiptCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetSettlement retrieves the settlement receipt.
func (s *ReceiptStore) GetSettlement(_ context.Context, key domain.LaunchKey) (*domain.SettlementReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.settlements[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	receiptCopy := *r
	return &receiptCopy, nil
}

// GetPurchaseByReference retrieves the purchase receipt recorded under reference.
func (s *ReceiptStore) GetPurchaseByReference(_ context.Context, key domain.LaunchKey, reference string) (*domain.PurchaseReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.references[referenceKey{launch: key, kind: domain.ReceiptKindPurchase, reference: reference}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	for _, r := range s.purchases[key] {
		if r.ReceiptID == id {
			receiptCopy := *r
			return &receiptCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetClaimByReference retrieves the claim receipt recorded under reference.
func (s *ReceiptStore) GetClaimByReference(_ context.Context, key domain.LaunchKey, reference string) (*domain.ClaimReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.references[referenceKey{launch: key, kind: domain.ReceiptKindClaim, reference: reference}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	for _, r := range s.claims[key] {
		if r.ReceiptID == id {
			receiptCopy := *r
			return &receiptCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Verify interface compliance at compile time.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)
