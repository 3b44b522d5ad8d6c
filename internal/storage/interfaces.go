package storage

import (
	"context"

	"meme-presale/internal/domain"
)

// LaunchStore provides access to launches storage.
// Launches are keyed by (creator, index). Status only moves forward.
type LaunchStore interface {
	// Insert adds a new launch. Returns ErrDuplicateKey if (creator, index) or address exists.
	Insert(ctx context.Context, l *domain.Launch) error

	// Get retrieves a launch by key. Returns ErrNotFound if not exists.
	Get(ctx context.Context, key domain.LaunchKey) (*domain.Launch, error)

	// GetByAddress retrieves a launch by its derived address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Launch, error)

	// ListByCreator retrieves all launches of a creator, ordered by index ASC.
	ListByCreator(ctx context.Context, creator string) ([]*domain.Launch, error)

	// ListByStatus retrieves all launches with a status, ordered by created_time ASC.
	ListByStatus(ctx context.Context, status domain.LaunchStatus) ([]*domain.Launch, error)

	// UpdateStatus sets status to `to` only if the stored status equals `from`.
	// Returns ErrStatusConflict on mismatch, ErrNotFound if the launch does not exist.
	UpdateStatus(ctx context.Context, key domain.LaunchKey, from, to domain.LaunchStatus) error

	// SetToken assigns the mint address once. Returns ErrTokenAlreadySet if already assigned.
	SetToken(ctx context.Context, key domain.LaunchKey, tokenID string) error

	// SetHalted latches the halted flag. Idempotent.
	SetHalted(ctx context.Context, key domain.LaunchKey) error

	// MarkSettled sets the settled flag only if it is unset. Returns ErrStatusConflict otherwise.
	MarkSettled(ctx context.Context, key domain.LaunchKey) error
}

// CounterStore provides per-creator launch index sequences.
type CounterStore interface {
	// Next returns the next unused index for creator, starting at 0.
	Next(ctx context.Context, creator string) (uint32, error)

	// Peek returns the next index without consuming it.
	Peek(ctx context.Context, creator string) (uint32, error)
}

// GlobalConfigStore provides access to the single global_config row.
type GlobalConfigStore interface {
	// Get returns the config. Returns ErrNotFound if it was never stored.
	Get(ctx context.Context) (*domain.GlobalConfig, error)

	// Put creates or replaces the config.
	Put(ctx context.Context, cfg *domain.GlobalConfig) error
}

// ReceiptStore provides access to purchase_receipts, claim_receipts and settlement_receipts.
// All receipts are append-only.
type ReceiptStore interface {
	// InsertPurchase adds a purchase receipt. Returns ErrDuplicateKey if receipt_id
	// or (launch, reference) exists.
	InsertPurchase(ctx context.Context, r *domain.PurchaseReceipt) error

	// InsertClaim adds a claim receipt. Returns ErrDuplicateKey if receipt_id
	// or (launch, reference) exists.
	InsertClaim(ctx context.Context, r *domain.ClaimReceipt) error

	// InsertSettlement adds the settlement receipt. Returns ErrDuplicateKey if the launch has one.
	InsertSettlement(ctx context.Context, r *domain.SettlementReceipt) error

	// GetPurchases retrieves purchase receipts of a launch, ordered by timestamp ASC.
	GetPurchases(ctx context.Context, key domain.LaunchKey) ([]*domain.PurchaseReceipt, error)

	// GetClaims retrieves claim receipts of a launch, ordered by timestamp ASC.
	GetClaims(ctx context.Context, key domain.LaunchKey) ([]*domain.ClaimReceipt, error)

	// GetSettlement retrieves the settlement receipt. Returns ErrNotFound if not exists.
	GetSettlement(ctx context.Context, key domain.LaunchKey) (*domain.SettlementReceipt, error)

	// GetPurchaseByReference retrieves the purchase receipt recorded under reference.
	// Returns ErrNotFound if none exists.
	GetPurchaseByReference(ctx context.Context, key domain.LaunchKey, reference string) (*domain.PurchaseReceipt, error)

	// GetClaimByReference retrieves the claim receipt recorded under reference.
	// Returns ErrNotFound if none exists.
	GetClaimByReference(ctx context.Context, key domain.LaunchKey, reference string) (*domain.ClaimReceipt, error)
}

// LaunchVolume is an aggregate of receipt activity for one launch.
type LaunchVolume struct {
	Launch        string
	Purchases     uint64
	Claims        uint64
	TokensSold    uint64
	TokensClaimed uint64
	Deposited     uint64
	Refunded      uint64
	Fees          uint64
}

// ReceiptAnalyticsStore provides append-only receipt event storage for analytics.
type ReceiptAnalyticsStore interface {
	// InsertEvents appends receipt events.
	InsertEvents(ctx context.Context, events []*domain.ReceiptEvent) error

	// GetLaunchVolume aggregates the events of one launch.
	GetLaunchVolume(ctx context.Context, key domain.LaunchKey) (*LaunchVolume, error)
}
