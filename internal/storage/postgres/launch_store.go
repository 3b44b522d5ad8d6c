package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// LaunchStore implements storage.LaunchStore using PostgreSQL.
type LaunchStore struct {
	pool *Pool
}

// NewLaunchStore creates a new LaunchStore.
func NewLaunchStore(pool *Pool) *LaunchStore {
	return &LaunchStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LaunchStore = (*LaunchStore)(nil)

const launchColumns = `
	creator, launch_index, address, created_time, tier, status, COALESCE(token_id, ''), halted, settled,
	name, symbol, uri, description, website, telegram, twitter
`

// Insert adds a new launch. Returns ErrDuplicateKey if (creator, launch_index) or address exists.
func (s *LaunchStore) Insert(ctx context.Context, l *domain.Launch) error {
	if l == nil || l.Creator == "" || !l.Status.IsValid() || !l.Tier.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO launches (
			creator, launch_index, address, created_time, tier, status, token_id, halted, settled,
			name, symbol, uri, description, website, telegram, twitter
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	m := l.Metadata
	_, err := s.pool.Exec(ctx, query,
		l.Creator,
		int64(l.Index),
		l.Address,
		l.CreatedTime,
		int16(l.Tier),
		string(l.Status),
		l.TokenID,
		l.Halted,
		l.Settled,
		m.Name, m.Symbol, m.URI, m.Description, m.Website, m.Telegram, m.Twitter,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert launch: %w", err)
	}
	return nil
}

// Get retrieves a launch by key. Returns ErrNotFound if not exists.
func (s *LaunchStore) Get(ctx context.Context, key domain.LaunchKey) (*domain.Launch, error) {
	query := `SELECT ` + launchColumns + ` FROM launches WHERE creator = $1 AND launch_index = $2`

	l, err := scanLaunch(s.pool.QueryRow(ctx, query, key.Creator, int64(key.Index)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get launch: %w", err)
	}
	return l, nil
}

// GetByAddress retrieves a launch by its derived address. Returns ErrNotFound if not exists.
func (s *LaunchStore) GetByAddress(ctx context.Context, address string) (*domain.Launch, error) {
	query := `SELECT ` + launchColumns + ` FROM launches WHERE address = $1`

	l, err := scanLaunch(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get launch by address: %w", err)
	}
	return l, nil
}

// ListByCreator retrieves all launches of a creator, ordered by index ASC.
func (s *LaunchStore) ListByCreator(ctx context.Context, creator string) ([]*domain.Launch, error) {
	query := `SELECT ` + launchColumns + ` FROM launches WHERE creator = $1 ORDER BY launch_index ASC`

	rows, err := s.pool.Query(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("list launches by creator: %w", err)
	}
	defer rows.Close()

	return scanLaunches(rows)
}

// ListByStatus retrieves all launches with a status, ordered by created_time ASC.
func (s *LaunchStore) ListByStatus(ctx context.Context, status domain.LaunchStatus) ([]*domain.Launch, error) {
	query := `
		SELECT ` + launchColumns + ` FROM launches
		WHERE status = $1
		ORDER BY created_time ASC, creator ASC, launch_index ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list launches by status: %w", err)
	}
	defer rows.Close()

	return scanLaunches(rows)
}

// UpdateStatus sets status to `to` only if the stored status equals `from`.
func (s *LaunchStore) UpdateStatus(ctx context.Context, key domain.LaunchKey, from, to domain.LaunchStatus) error {
	if !from.IsValid() || !to.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE launches SET status = $4
		WHERE creator = $1 AND launch_index = $2 AND status = $3
	`

	tag, err := s.pool.Exec(ctx, query, key.Creator, int64(key.Index), string(from), string(to))
	if err != nil {
		return fmt.Errorf("update launch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, key, storage.ErrStatusConflict)
	}
	return nil
}

// SetToken assigns the mint address once. Returns ErrTokenAlreadySet if already assigned.
func (s *LaunchStore) SetToken(ctx context.Context, key domain.LaunchKey, tokenID string) error {
	if tokenID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE launches SET token_id = $3
		WHERE creator = $1 AND launch_index = $2 AND token_id IS NULL
	`

	tag, err := s.pool.Exec(ctx, query, key.Creator, int64(key.Index), tokenID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("set launch token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, key, storage.ErrTokenAlreadySet)
	}
	return nil
}

// SetHalted latches the halted flag. Idempotent.
func (s *LaunchStore) SetHalted(ctx context.Context, key domain.LaunchKey) error {
	query := `UPDATE launches SET halted = TRUE WHERE creator = $1 AND launch_index = $2`

	tag, err := s.pool.Exec(ctx, query, key.Creator, int64(key.Index))
	if err != nil {
		return fmt.Errorf("set launch halted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkSettled sets the settled flag only if it is unset. Returns ErrStatusConflict otherwise.
func (s *LaunchStore) MarkSettled(ctx context.Context, key domain.LaunchKey) error {
	query := `
		UPDATE launches SET settled = TRUE
		WHERE creator = $1 AND launch_index = $2 AND settled = FALSE
	`

	tag, err := s.pool.Exec(ctx, query, key.Creator, int64(key.Index))
	if err != nil {
		return fmt.Errorf("mark launch settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, key, storage.ErrStatusConflict)
	}
	return nil
}

// missOrConflict tells a missing launch apart from a failed conditional update.
func (s *LaunchStore) missOrConflict(ctx context.Context, key domain.LaunchKey, conflict error) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM launches WHERE creator = $1 AND launch_index = $2)`
	if err := s.pool.QueryRow(ctx, query, key.Creator, int64(key.Index)).Scan(&exists); err != nil {
		return fmt.Errorf("check launch exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return conflict
}

// scanLaunch scans a single row into Launch.
func scanLaunch(row pgx.Row) (*domain.Launch, error) {
	var (
		l      domain.Launch
		index  int64
		tier   int16
		status string
		m      = &l.Metadata
	)
	err := row.Scan(
		&l.Creator,
		&index,
		&l.Address,
		&l.CreatedTime,
		&tier,
		&status,
		&l.TokenID,
		&l.Halted,
		&l.Settled,
		&m.Name, &m.Symbol, &m.URI, &m.Description, &m.Website, &m.Telegram, &m.Twitter,
	)
	if err != nil {
		return nil, err
	}
	l.Index = uint32(index)
	l.Tier = domain.FundingRaiseTier(tier)
	l.Status = domain.LaunchStatus(status)
	return &l, nil
}

// scanLaunches scans multiple rows into a slice of Launch.
func scanLaunches(rows pgx.Rows) ([]*domain.Launch, error) {
	var launches []*domain.Launch

	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		launches = append(launches, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate launches: %w", err)
	}

	return launches, nil
}
