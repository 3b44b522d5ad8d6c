package clickhouse

import (
	"context"
	"fmt"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// ReceiptEventStore implements storage.ReceiptAnalyticsStore using ClickHouse.
type ReceiptEventStore struct {
	conn *Conn
}

// NewReceiptEventStore creates a new ReceiptEventStore.
func NewReceiptEventStore(conn *Conn) *ReceiptEventStore {
	return &ReceiptEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ReceiptAnalyticsStore = (*ReceiptEventStore)(nil)

// eventRow is the flattened receipt_events row.
type eventRow struct {
	Launch     string
	Kind       string
	ReceiptID  string
	Actor      string
	TokenID    string
	TokenUnits uint64
	Lamports   uint64 // deposit, net refund or gross raised
	Fee        uint64
	Timestamp  int64
}

// flatten maps an event to its row. Returns ErrInvalidInput for events without a payload.
func flatten(e *domain.ReceiptEvent) (eventRow, error) {
	if e == nil || e.Launch == "" {
		return eventRow{}, storage.ErrInvalidInput
	}
	row := eventRow{Launch: e.Launch, Kind: string(e.Kind)}
	switch {
	case e.Purchase != nil:
		p := e.Purchase
		row.ReceiptID, row.Actor, row.TokenID = p.ReceiptID, p.Buyer, p.TokenID
		row.TokenUnits, row.Lamports, row.Timestamp = p.TokenUnits, p.Deposit, p.Timestamp
	case e.Claim != nil:
		c := e.Claim
		row.ReceiptID, row.Actor, row.TokenID = c.ReceiptID, c.Claimer, c.TokenID
		row.TokenUnits, row.Lamports, row.Fee, row.Timestamp = c.TokenUnits, c.NetRefund, c.Fee, c.Timestamp
	case e.Settlement != nil:
		s := e.Settlement
		row.ReceiptID, row.Actor, row.TokenID = s.ReceiptID, s.Launch.Creator, s.TokenID
		row.Lamports, row.Fee, row.Timestamp = s.GrossRaised, s.Fee, s.Timestamp
	case e.Created != nil:
		c := e.Created
		row.ReceiptID, row.Actor, row.TokenID = "created:"+c.TokenID, c.Creator, c.TokenID
		row.TokenUnits, row.Timestamp = domain.TotalSupply, c.CreatedTime
	default:
		return eventRow{}, storage.ErrInvalidInput
	}
	return row, nil
}

// InsertEvents appends events in one batch. Fails the entire batch on a duplicate receipt id.
func (s *ReceiptEventStore) InsertEvents(ctx context.Context, events []*domain.ReceiptEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]eventRow, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		row, err := flatten(e)
		if err != nil {
			return err
		}
		if _, exists := seen[row.ReceiptID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[row.ReceiptID] = struct{}{}
		rows = append(rows, row)
	}

	// MergeTree does not enforce uniqueness
	for _, row := range rows {
		exists, err := s.exists(ctx, row.Launch, row.ReceiptID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO receipt_events (
			launch, kind, receipt_id, actor, token_id, token_units, lamports, fee, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.Launch, r.Kind, r.ReceiptID, r.Actor, r.TokenID,
			r.TokenUnits, r.Lamports, r.Fee, r.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Publish appends a single committed event.
func (s *ReceiptEventStore) Publish(ctx context.Context, e *domain.ReceiptEvent) error {
	return s.InsertEvents(ctx, []*domain.ReceiptEvent{e})
}

// GetLaunchVolume aggregates the events of one launch.
func (s *ReceiptEventStore) GetLaunchVolume(ctx context.Context, key domain.LaunchKey) (*storage.LaunchVolume, error) {
	query := `
		SELECT
			countIf(kind = 'PURCHASE'),
			countIf(kind = 'CLAIM'),
			sumIf(token_units, kind = 'PURCHASE'),
			sumIf(token_units, kind = 'CLAIM'),
			sumIf(lamports, kind = 'PURCHASE'),
			sumIf(lamports, kind = 'CLAIM'),
			sum(fee)
		FROM receipt_events
		WHERE launch = ?
	`

	vol := &storage.LaunchVolume{Launch: key.String()}
	row := s.conn.QueryRow(ctx, query, vol.Launch)
	if err := row.Scan(
		&vol.Purchases, &vol.Claims,
		&vol.TokensSold, &vol.TokensClaimed,
		&vol.Deposited, &vol.Refunded,
		&vol.Fees,
	); err != nil {
		return nil, fmt.Errorf("query launch volume: %w", err)
	}
	return vol, nil
}

// exists checks if a receipt id was already recorded for the launch.
func (s *ReceiptEventStore) exists(ctx context.Context, launch, receiptID string) (bool, error) {
	query := `
		SELECT count() FROM receipt_events
		WHERE launch = ? AND receipt_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, launch, receiptID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
