package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-memory implementation of Ledger.
type MemoryLedger struct {
	mu       sync.RWMutex
	lamports map[string]uint64
	tokens   map[TokenAccount]uint64
	minted   map[string]uint64 // token -> total supply
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		lamports: make(map[string]uint64),
		tokens:   make(map[TokenAccount]uint64),
		minted:   make(map[string]uint64),
	}
}

var _ Ledger = (*MemoryLedger)(nil)

// Balance returns the lamport balance of an account.
func (l *MemoryLedger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lamports[account], nil
}

// TokenBalance returns the token balance of an account.
func (l *MemoryLedger) TokenBalance(_ context.Context, token, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tokens[TokenAccount{Token: token, Account: account}], nil
}

// Supply returns the minted supply of a token.
func (l *MemoryLedger) Supply(_ context.Context, token string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted[token], nil
}

// Post applies all movements atomically.
func (l *MemoryLedger) Post(_ context.Context, moves []Movement) error {
	if err := Validate(moves); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Stage on copies of the touched balances, commit only if all legs succeed.
	accounts, tokenAccounts := Touched(moves)
	lamports := make(map[string]uint64, len(accounts))
	for _, a := range accounts {
		lamports[a] = l.lamports[a]
	}
	tokens := make(map[TokenAccount]uint64, len(tokenAccounts))
	for _, ta := range tokenAccounts {
		tokens[ta] = l.tokens[ta]
	}

	if err := Apply(moves, lamports, tokens); err != nil {
		return err
	}

	for k, v := range lamports {
		l.lamports[k] = v
	}
	for k, v := range tokens {
		l.tokens[k] = v
	}
	return nil
}

// Mint creates the token supply once.
func (l *MemoryLedger) Mint(_ context.Context, token string, allocations []Allocation) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidMovement)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.minted[token]; exists {
		return fmt.Errorf("%w: %s", ErrMintRevoked, token)
	}

	var supply uint64
	for _, a := range allocations {
		if a.Account == "" {
			return fmt.Errorf("%w: allocation without account", ErrInvalidMovement)
		}
		supply += a.Amount
		if supply < a.Amount {
			return fmt.Errorf("%w: supply", ErrBalanceOverflow)
		}
	}

	for _, a := range allocations {
		l.tokens[TokenAccount{Token: token, Account: a.Account}] += a.Amount
	}
	l.minted[token] = supply
	return nil
}

// Fund credits lamports from outside the system.
func (l *MemoryLedger) Fund(_ context.Context, account string, amount uint64) error {
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidMovement)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.lamports[account]
	if bal+amount < bal {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, account)
	}
	l.lamports[account] = bal + amount
	return nil
}
