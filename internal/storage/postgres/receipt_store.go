package postgres

import (
	"context"
	"fmt"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

// InsertPurchase adds a purchase receipt. Returns ErrDuplicateKey if receipt_id
// or (launch, reference) exists.
func (s *ReceiptStore) InsertPurchase(ctx context.Context, r *domain.PurchaseReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO purchase_receipts (
			receipt_id, creator, launch_index, buyer, token_units, token_id, unit_price,
			remaining, reference, deposit, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ReceiptID,
		r.Launch.Creator,
		int64(r.Launch.Index),
		r.Buyer,
		r.TokenUnits,
		r.TokenID,
		r.UnitPrice,
		r.Remaining,
		r.Reference,
		r.Deposit,
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert purchase receipt: %w", err)
	}
	return nil
}

// InsertClaim adds a claim receipt. Returns ErrDuplicateKey if receipt_id
// or (launch, reference) exists.
func (s *ReceiptStore) InsertClaim(ctx context.Context, r *domain.ClaimReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO claim_receipts (
			receipt_id, creator, launch_index, claimer, token_units, token_id, unit_price,
			gross_refund, fee, net_refund, reference, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ReceiptID,
		r.Launch.Creator,
		int64(r.Launch.Index),
		r.Claimer,
		r.TokenUnits,
		r.TokenID,
		r.UnitPrice,
		r.GrossRefund,
		r.Fee,
		r.NetRefund,
		r.Reference,
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert claim receipt: %w", err)
	}
	return nil
}

// InsertSettlement adds the settlement receipt. Returns ErrDuplicateKey if the launch has one.
func (s *ReceiptStore) InsertSettlement(ctx context.Context, r *domain.SettlementReceipt) error {
	if r == nil || r.ReceiptID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO settlement_receipts (
			receipt_id, creator, launch_index, token_id, gross_raised, fee, creator_gain,
			pool_creation_fee, wrap_amount, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ReceiptID,
		r.Launch.Creator,
		int64(r.Launch.Index),
		r.TokenID,
		r.GrossRaised,
		r.Fee,
		r.CreatorGain,
		r.PoolCreationFee,
		r.WrapAmount,
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert settlement receipt: %w", err)
	}
	return nil
}

// GetPurchases retrieves purchase receipts of a launch, ordered by timestamp ASC.
func (s *ReceiptStore) GetPurchases(ctx context.Context, key domain.LaunchKey) ([]*domain.PurchaseReceipt, error) {
	query := `
		SELECT receipt_id, buyer, token_units, token_id, unit_price, remaining, reference, deposit, timestamp
		FROM purchase_receipts
		WHERE creator = $1 AND launch_index = $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, key.Creator, int64(key.Index))
	if err != nil {
		return nil, fmt.Errorf("get purchase receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*domain.PurchaseReceipt, 0)
	for rows.Next() {
		r := domain.PurchaseReceipt{Launch: key}
		if err := rows.Scan(
			&r.ReceiptID, &r.Buyer, &r.TokenUnits, &r.TokenID, &r.UnitPrice,
			&r.Remaining, &r.Reference, &r.Deposit, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan purchase receipt: %w", err)
		}
		receipts = append(receipts, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase receipts: %w", err)
	}
	return receipts, nil
}

// GetClaims retrieves claim receipts of a launch, ordered by timestamp ASC.
func (s *ReceiptStore) GetClaims(ctx context.Context, key domain.LaunchKey) ([]*domain.ClaimReceipt, error) {
	query := `
		SELECT receipt_id, claimer, token_units, token_id, unit_price, gross_refund, fee, net_refund,
			reference, timestamp
		FROM claim_receipts
		WHERE creator = $1 AND launch_index = $2
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, key.Creator, int64(key.Index))
	if err != nil {
		return nil, fmt.Errorf("get claim receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]*domain.ClaimReceipt, 0)
	for rows.Next() {
		r := domain.ClaimReceipt{Launch: key}
		if err := rows.Scan(
			&r.ReceiptID, &r.Claimer, &r.TokenUnits, &r.TokenID, &r.UnitPrice,
			&r.GrossRefund, &r.Fee, &r.NetRefund, &r.Reference, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan claim receipt: %w", err)
		}
		receipts = append(receipts, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim receipts: %w", err)
	}
	return receipts, nil
}

// GetSettlement retrieves the settlement receipt. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetSettlement(ctx context.Context, key domain.LaunchKey) (*domain.SettlementReceipt, error) {
	query := `
		SELECT receipt_id, token_id, gross_raised, fee, creator_gain, pool_creation_fee, wrap_amount, timestamp
		FROM settlement_receipts
		WHERE creator = $1 AND launch_index = $2
	`

	r := domain.SettlementReceipt{Launch: key}
	err := s.pool.QueryRow(ctx, query, key.Creator, int64(key.Index)).Scan(
		&r.ReceiptID, &r.TokenID, &r.GrossRaised, &r.Fee, &r.CreatorGain,
		&r.PoolCreationFee, &r.WrapAmount, &r.Timestamp,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement receipt: %w", err)
	}
	return &r, nil
}

// GetPurchaseByReference retrieves the purchase receipt recorded under reference.
// Returns ErrNotFound if none exists.
func (s *ReceiptStore) GetPurchaseByReference(ctx context.Context, key domain.LaunchKey, reference string) (*domain.PurchaseReceipt, error) {
	query := `
		SELECT receipt_id, buyer, token_units, token_id, unit_price, remaining, reference, deposit, timestamp
		FROM purchase_receipts
		WHERE creator = $1 AND launch_index = $2 AND reference = $3
	`

	r := domain.PurchaseReceipt{Launch: key}
	err := s.pool.QueryRow(ctx, query, key.Creator, int64(key.Index), reference).Scan(
		&r.ReceiptID, &r.Buyer, &r.TokenUnits, &r.TokenID, &r.UnitPrice,
		&r.Remaining, &r.Reference, &r.Deposit, &r.Timestamp,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get purchase receipt by reference: %w", err)
	}
	return &r, nil
}

// GetClaimByReference retrieves the claim receipt recorded under reference.
// Returns ErrNotFound if none exists.
func (s *ReceiptStore) GetClaimByReference(ctx context.Context, key domain.LaunchKey, reference string) (*domain.ClaimReceipt, error) {
	query := `
		SELECT receipt_id, claimer, token_units, token_id, unit_price, gross_refund, fee, net_refund,
			reference, timestamp
		FROM claim_receipts
		WHERE creator = $1 AND launch_index = $2 AND reference = $3
	`

	r := domain.ClaimReceipt{Launch: key}
	err := s.pool.QueryRow(ctx, query, key.Creator, int64(key.Index), reference).Scan(
		&r.ReceiptID, &r.Claimer, &r.TokenUnits, &r.TokenID, &r.UnitPrice,
		&r.GrossRefund, &r.Fee, &r.NetRefund, &r.Reference, &r.Timestamp,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get claim receipt by reference: %w", err)
	}
	return &r, nil
}
