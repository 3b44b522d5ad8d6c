package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
)

const pgErrNumericOutOfRange = "22003" // numeric_value_out_of_range

// Ledger implements ledger.Ledger using PostgreSQL.
// Each post runs in one transaction holding row locks on every touched balance.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ ledger.Ledger = (*Ledger)(nil)

// Balance returns the lamport balance of an account.
func (l *Ledger) Balance(ctx context.Context, account string) (uint64, error) {
	var lamports int64
	err := l.pool.QueryRow(ctx, `SELECT lamports FROM ledger_accounts WHERE account = $1`, account).Scan(&lamports)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return uint64(lamports), nil
}

// TokenBalance returns the token balance of an account.
func (l *Ledger) TokenBalance(ctx context.Context, token, account string) (uint64, error) {
	var units int64
	query := `SELECT units FROM ledger_token_accounts WHERE token = $1 AND account = $2`
	err := l.pool.QueryRow(ctx, query, token, account).Scan(&units)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	return uint64(units), nil
}

// Supply returns the minted supply of a token, zero if not minted.
func (l *Ledger) Supply(ctx context.Context, token string) (uint64, error) {
	var supply int64
	err := l.pool.QueryRow(ctx, `SELECT supply FROM ledger_mints WHERE token = $1`, token).Scan(&supply)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get supply: %w", err)
	}
	return uint64(supply), nil
}

// Post applies all movements in one transaction.
func (l *Ledger) Post(ctx context.Context, moves []ledger.Movement) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "ledger_post", time.Since(start).Seconds(), err) }()

	if err := ledger.Validate(moves); err != nil {
		return err
	}

	accounts, tokenAccounts := ledger.Touched(moves)
	// Lock in a fixed order so concurrent posts cannot deadlock
	sort.Strings(accounts)
	sort.Slice(tokenAccounts, func(i, j int) bool {
		if tokenAccounts[i].Token != tokenAccounts[j].Token {
			return tokenAccounts[i].Token < tokenAccounts[j].Token
		}
		return tokenAccounts[i].Account < tokenAccounts[j].Account
	})

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lamports, err := lockAccounts(ctx, tx, accounts)
	if err != nil {
		return err
	}
	tokens, err := lockTokenAccounts(ctx, tx, tokenAccounts)
	if err != nil {
		return err
	}

	if err := ledger.Apply(moves, lamports, tokens); err != nil {
		return err
	}

	for _, account := range accounts {
		v, err := toInt64(lamports[account])
		if err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrBalanceOverflow, err)
		}
		if _, err := tx.Exec(ctx, `UPDATE ledger_accounts SET lamports = $2 WHERE account = $1`, account, v); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}
	for _, ta := range tokenAccounts {
		v, err := toInt64(tokens[ta])
		if err != nil {
			return fmt.Errorf("%w: %v", ledger.ErrBalanceOverflow, err)
		}
		query := `UPDATE ledger_token_accounts SET units = $3 WHERE token = $1 AND account = $2`
		if _, err := tx.Exec(ctx, query, ta.Token, ta.Account, v); err != nil {
			return fmt.Errorf("update token balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockAccounts creates missing lamport rows and locks all of them.
func lockAccounts(ctx context.Context, tx pgx.Tx, accounts []string) (map[string]uint64, error) {
	balances := make(map[string]uint64, len(accounts))
	if len(accounts) == 0 {
		return balances, nil
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (account)
		SELECT unnest($1::text[])
		ON CONFLICT (account) DO NOTHING
	`, accounts)
	if err != nil {
		return nil, fmt.Errorf("create accounts: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT account, lamports FROM ledger_accounts
		WHERE account = ANY($1::text[])
		ORDER BY account
		FOR UPDATE
	`, accounts)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			account  string
			lamports int64
		)
		if err := rows.Scan(&account, &lamports); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		balances[account] = uint64(lamports)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return balances, nil
}

// lockTokenAccounts creates missing token rows and locks all of them.
func lockTokenAccounts(ctx context.Context, tx pgx.Tx, keys []ledger.TokenAccount) (map[ledger.TokenAccount]uint64, error) {
	balances := make(map[ledger.TokenAccount]uint64, len(keys))
	if len(keys) == 0 {
		return balances, nil
	}

	tokenIDs := make([]string, len(keys))
	accounts := make([]string, len(keys))
	for i, k := range keys {
		tokenIDs[i], accounts[i] = k.Token, k.Account
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_token_accounts (token, account)
		SELECT * FROM unnest($1::text[], $2::text[])
		ON CONFLICT (token, account) DO NOTHING
	`, tokenIDs, accounts)
	if err != nil {
		return nil, fmt.Errorf("create token accounts: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT t.token, t.account, t.units
		FROM ledger_token_accounts t
		JOIN unnest($1::text[], $2::text[]) AS k(token, account)
			ON t.token = k.token AND t.account = k.account
		ORDER BY t.token, t.account
		FOR UPDATE OF t
	`, tokenIDs, accounts)
	if err != nil {
		return nil, fmt.Errorf("lock token accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			k     ledger.TokenAccount
			units int64
		)
		if err := rows.Scan(&k.Token, &k.Account, &units); err != nil {
			return nil, fmt.Errorf("scan token account: %w", err)
		}
		balances[k] = uint64(units)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token accounts: %w", err)
	}
	return balances, nil
}

// Mint creates the token supply once. Returns ErrMintRevoked if the token was already minted.
func (l *Ledger) Mint(ctx context.Context, token string, allocations []ledger.Allocation) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ledger.ErrInvalidMovement)
	}

	var supply uint64
	for _, a := range allocations {
		if a.Account == "" {
			return fmt.Errorf("%w: allocation without account", ledger.ErrInvalidMovement)
		}
		supply += a.Amount
		if supply < a.Amount {
			return fmt.Errorf("%w: supply", ledger.ErrBalanceOverflow)
		}
	}
	total, err := toInt64(supply)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrBalanceOverflow, err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO ledger_mints (token, supply) VALUES ($1, $2)`, token, total); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ledger.ErrMintRevoked, token)
		}
		return fmt.Errorf("insert mint: %w", err)
	}

	for _, a := range allocations {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_token_accounts (token, account, units) VALUES ($1, $2, $3)
			ON CONFLICT (token, account) DO UPDATE SET units = ledger_token_accounts.units + EXCLUDED.units
		`, token, a.Account, int64(a.Amount))
		if err != nil {
			return fmt.Errorf("allocate %s: %w", a.Account, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Fund credits lamports from outside the system.
func (l *Ledger) Fund(ctx context.Context, account string, amount uint64) error {
	if account == "" {
		return fmt.Errorf("%w: empty account", ledger.ErrInvalidMovement)
	}
	v, err := toInt64(amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrBalanceOverflow, err)
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO ledger_accounts (account, lamports) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET lamports = ledger_accounts.lamports + EXCLUDED.lamports
	`, account, v)
	if err != nil {
		if hasCode(err, pgErrNumericOutOfRange) {
			return fmt.Errorf("%w: account %s", ledger.ErrBalanceOverflow, account)
		}
		return fmt.Errorf("fund account: %w", err)
	}
	return nil
}
