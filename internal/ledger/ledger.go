// Package ledger defines the balance-moving collaborator used by the sale engine.
//
// The ledger owns lamport and token balances. The sale engine never mutates balances
// directly: it builds a list of movements and posts them in one atomic call.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Ledger errors.
var (
	// ErrInsufficientFunds is returned when a debit exceeds the lamport balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientTokenBalance is returned when a token transfer exceeds the sender balance.
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")

	// ErrMintRevoked is returned when minting a token whose mint authority is revoked.
	ErrMintRevoked = errors.New("mint authority revoked")

	// ErrUnbalanced is returned when lamport debits and credits of a post do not net to zero.
	ErrUnbalanced = errors.New("unbalanced post")

	// ErrInvalidMovement is returned for malformed movements.
	ErrInvalidMovement = errors.New("invalid movement")

	// ErrBalanceOverflow is returned when a credit would overflow a balance.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// MovementKind is the type of a ledger movement.
type MovementKind string

const (
	MovementDebit         MovementKind = "DEBIT"          // lamports leave Account
	MovementCredit        MovementKind = "CREDIT"         // lamports enter Account
	MovementTokenTransfer MovementKind = "TOKEN_TRANSFER" // token units move From -> To
)

// Movement is one leg of an atomic post.
type Movement struct {
	Kind    MovementKind
	Account string // lamport account for debit/credit
	Token   string // mint for token transfers
	From    string
	To      string
	Amount  uint64
}

// Debit returns a lamport debit leg.
func Debit(account string, amount uint64) Movement {
	return Movement{Kind: MovementDebit, Account: account, Amount: amount}
}

// Credit returns a lamport credit leg.
func Credit(account string, amount uint64) Movement {
	return Movement{Kind: MovementCredit, Account: account, Amount: amount}
}

// TransferTokens returns a token transfer leg.
func TransferTokens(token, from, to string, amount uint64) Movement {
	return Movement{Kind: MovementTokenTransfer, Token: token, From: from, To: to, Amount: amount}
}

// TokenAccount identifies a token balance.
type TokenAccount struct {
	Token   string
	Account string
}

// Allocation is a mint destination.
type Allocation struct {
	Account string
	Amount  uint64
}

// Ledger moves lamports and token units.
type Ledger interface {
	// Balance returns the lamport balance of an account (zero for unknown accounts).
	Balance(ctx context.Context, account string) (uint64, error)

	// TokenBalance returns the token balance of an account (zero for unknown accounts).
	TokenBalance(ctx context.Context, token, account string) (uint64, error)

	// Supply returns the minted supply of a token (zero if not minted).
	Supply(ctx context.Context, token string) (uint64, error)

	// Post applies all movements atomically: either every leg is applied or none is.
	// Legs are applied in order, so a credit earlier in the list can fund a later debit.
	Post(ctx context.Context, moves []Movement) error

	// Mint creates the fixed supply of a token and permanently revokes minting.
	// Returns ErrMintRevoked if the token was already minted.
	Mint(ctx context.Context, token string, allocations []Allocation) error

	// Fund credits lamports from outside the system (bridge deposits, faucets).
	Fund(ctx context.Context, account string, amount uint64) error
}

// Validate checks movement shape and lamport conservation.
func Validate(moves []Movement) error {
	var debits, credits uint64
	for i, m := range moves {
		switch m.Kind {
		case MovementDebit, MovementCredit:
			if m.Account == "" {
				return fmt.Errorf("%w: leg %d has no account", ErrInvalidMovement, i)
			}
			if m.Kind == MovementDebit {
				debits += m.Amount
				if debits < m.Amount {
					return fmt.Errorf("%w: debit total", ErrBalanceOverflow)
				}
			} else {
				credits += m.Amount
				if credits < m.Amount {
					return fmt.Errorf("%w: credit total", ErrBalanceOverflow)
				}
			}
		case MovementTokenTransfer:
			if m.Token == "" || m.From == "" || m.To == "" {
				return fmt.Errorf("%w: leg %d token transfer is incomplete", ErrInvalidMovement, i)
			}
		default:
			return fmt.Errorf("%w: leg %d kind %q", ErrInvalidMovement, i, m.Kind)
		}
	}
	if debits != credits {
		return fmt.Errorf("%w: debits %d credits %d", ErrUnbalanced, debits, credits)
	}
	return nil
}

// Touched returns the lamport accounts and token accounts referenced by moves.
func Touched(moves []Movement) (accounts []string, tokenAccounts []TokenAccount) {
	seen := make(map[string]struct{})
	seenTokens := make(map[TokenAccount]struct{})
	for _, m := range moves {
		switch m.Kind {
		case MovementDebit, MovementCredit:
			if _, ok := seen[m.Account]; !ok {
				seen[m.Account] = struct{}{}
				accounts = append(accounts, m.Account)
			}
		case MovementTokenTransfer:
			for _, ta := range []TokenAccount{{Token: m.Token, Account: m.From}, {Token: m.Token, Account: m.To}} {
				if _, ok := seenTokens[ta]; !ok {
					seenTokens[ta] = struct{}{}
					tokenAccounts = append(tokenAccounts, ta)
				}
			}
		}
	}
	return accounts, tokenAccounts
}

// Apply runs moves in order against the given balances, mutating the maps.
// Missing entries count as zero. On error the maps are partially updated and must be discarded.
func Apply(moves []Movement, lamports map[string]uint64, tokens map[TokenAccount]uint64) error {
	for i, m := range moves {
		if m.Amount == 0 {
			continue
		}
		switch m.Kind {
		case MovementDebit:
			bal := lamports[m.Account]
			if bal < m.Amount {
				return fmt.Errorf("%w: leg %d account %s has %d, needs %d", ErrInsufficientFunds, i, m.Account, bal, m.Amount)
			}
			lamports[m.Account] = bal - m.Amount
		case MovementCredit:
			bal := lamports[m.Account]
			if bal+m.Amount < bal {
				return fmt.Errorf("%w: account %s", ErrBalanceOverflow, m.Account)
			}
			lamports[m.Account] = bal + m.Amount
		case MovementTokenTransfer:
			from := TokenAccount{Token: m.Token, Account: m.From}
			to := TokenAccount{Token: m.Token, Account: m.To}
			fromBal := tokens[from]
			if fromBal < m.Amount {
				return fmt.Errorf("%w: leg %d account %s has %d, needs %d", ErrInsufficientTokenBalance, i, m.From, fromBal, m.Amount)
			}
			tokens[from] = fromBal - m.Amount
			toBal := tokens[to]
			if toBal+m.Amount < toBal {
				return fmt.Errorf("%w: token account %s", ErrBalanceOverflow, m.To)
			}
			tokens[to] = toBal + m.Amount
		}
	}
	return nil
}
