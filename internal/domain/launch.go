package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Token supply constants. All amounts are in the smallest unit.
const (
	TotalSupply    uint64 = 1_000_000_000_000_000
	SellableSupply uint64 = TotalSupply * 7 / 10
	ReserveSupply  uint64 = TotalSupply - SellableSupply

	// Decimals is the token unit scale (6 decimal places).
	Decimals      uint64 = 1_000_000
	TokenDecimals int    = 6

	// LamportsPerSOL is the base currency unit scale.
	LamportsPerSOL uint64 = 1_000_000_000

	// BasisPointsDenominator is 100% in basis points.
	BasisPointsDenominator uint64 = 10_000
)

// LaunchStatus is the sale state. Failed and Succeeded are terminal.
type LaunchStatus string

const (
	StatusOngoing   LaunchStatus = "ONGOING"
	StatusFailed    LaunchStatus = "FAILED"
	StatusSucceeded LaunchStatus = "SUCCEEDED"
)

// String returns the string representation of LaunchStatus.
func (s LaunchStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s LaunchStatus) IsValid() bool {
	return s == StatusOngoing || s == StatusFailed || s == StatusSucceeded
}

// IsTerminal reports whether no further transitions are allowed.
func (s LaunchStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusSucceeded
}

// CanTransition reports whether from -> to is a forward transition.
func CanTransition(from, to LaunchStatus) bool {
	return from == StatusOngoing && to.IsTerminal()
}

// LaunchKey is the primary key of a launch: creator plus per-creator sequence index.
type LaunchKey struct {
	Creator string
	Index   uint32
}

// String returns "creator/index".
func (k LaunchKey) String() string {
	return k.Creator + "/" + strconv.FormatUint(uint64(k.Index), 10)
}

// ParseLaunchKey parses the "creator/index" form produced by String.
func ParseLaunchKey(s string) (LaunchKey, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return LaunchKey{}, fmt.Errorf("malformed launch key %q", s)
	}
	idx, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return LaunchKey{}, fmt.Errorf("malformed launch index in %q: %w", s, err)
	}
	return LaunchKey{Creator: s[:i], Index: uint32(idx)}, nil
}

// LaunchMetadata is the descriptive data attached to the token at setup.
type LaunchMetadata struct {
	Name        string
	Symbol      string
	URI         string
	Description string
	Website     string
	Telegram    string
	Twitter     string
}

// Launch is one presale instance.
// Corresponds to the launches table in PostgreSQL.
type Launch struct {
	Creator     string           // launch owner
	Index       uint32           // per-creator sequence index
	Address     string           // derived launch account (holds the pools)
	CreatedTime int64            // sale start, unix seconds
	Tier        FundingRaiseTier // immutable after creation
	Status      LaunchStatus
	TokenID     string // mint address, empty until the token is minted
	Halted      bool   // latched after a consistency fault
	Settled     bool   // success distribution done
	Metadata    LaunchMetadata
}

// Key returns the launch primary key.
func (l *Launch) Key() LaunchKey {
	return LaunchKey{Creator: l.Creator, Index: l.Index}
}

// Deadline returns the unix second at which the sale window closes.
func (l *Launch) Deadline() int64 {
	return l.CreatedTime + l.Tier.Duration()
}

// ReserveAccount is the account holding the unsold 30% of supply.
func (l *Launch) ReserveAccount() string {
	return l.Address + ":reserve"
}

// WrappedSOLAccount receives the raised lamports to be paired in the liquidity pool.
func (l *Launch) WrappedSOLAccount() string {
	return l.Address + ":wsol"
}

// PoolFeeAccount receives the liquidity pool creation fee.
func (l *Launch) PoolFeeAccount() string {
	return l.Address + ":pool-fee"
}

// OwnsAccount reports whether account is the launch account or one of its derived accounts.
func (l *Launch) OwnsAccount(account string) bool {
	switch account {
	case l.Address, l.ReserveAccount(), l.WrappedSOLAccount(), l.PoolFeeAccount():
		return true
	}
	return false
}
