package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTier is returned for tier values outside the tier table.
var ErrInvalidTier = errors.New("invalid funding raise tier")

// FundingRaiseTier selects the funding target and sale duration of a launch.
type FundingRaiseTier uint8

const (
	TierTwentySol FundingRaiseTier = iota
	TierFiftySol
	TierOneHundredSol
	TierFiveHundredSol
	TierOneThousandSol
)

// TierParams holds the static values of a tier.
type TierParams struct {
	Name            string
	TargetLamports  uint64 // funding target in lamports
	DurationSeconds int64  // sale window length
}

// tierTable is indexed by FundingRaiseTier.
var tierTable = [...]TierParams{
	TierTwentySol:      {Name: "TwentySol", TargetLamports: 20_000_000_000, DurationSeconds: 12 * 3600},
	TierFiftySol:       {Name: "FiftySol", TargetLamports: 50_000_000_000, DurationSeconds: 24 * 3600},
	TierOneHundredSol:  {Name: "OneHundredSol", TargetLamports: 100_000_000_000, DurationSeconds: 48 * 3600},
	TierFiveHundredSol: {Name: "FiveHundredSol", TargetLamports: 500_000_000_000, DurationSeconds: 72 * 3600},
	TierOneThousandSol: {Name: "OneThousandSol", TargetLamports: 1_000_000_000_000, DurationSeconds: 120 * 3600},
}

// AllTiers returns every tier in index order.
func AllTiers() []FundingRaiseTier {
	tiers := make([]FundingRaiseTier, len(tierTable))
	for i := range tierTable {
		tiers[i] = FundingRaiseTier(i)
	}
	return tiers
}

// IsValid checks if the tier is present in the tier table.
func (t FundingRaiseTier) IsValid() bool {
	return int(t) < len(tierTable)
}

// Params returns the tier parameters. Returns ErrInvalidTier for unknown tiers.
func (t FundingRaiseTier) Params() (TierParams, error) {
	if !t.IsValid() {
		return TierParams{}, fmt.Errorf("%w: %d", ErrInvalidTier, uint8(t))
	}
	return tierTable[t], nil
}

// Target returns the funding target in lamports, zero for unknown tiers.
func (t FundingRaiseTier) Target() uint64 {
	if !t.IsValid() {
		return 0
	}
	return tierTable[t].TargetLamports
}

// Duration returns the sale window in seconds, zero for unknown tiers.
func (t FundingRaiseTier) Duration() int64 {
	if !t.IsValid() {
		return 0
	}
	return tierTable[t].DurationSeconds
}

// String returns the tier name.
func (t FundingRaiseTier) String() string {
	if !t.IsValid() {
		return "Unknown(" + strconv.Itoa(int(t)) + ")"
	}
	return tierTable[t].Name
}

// ParseTier accepts a tier name ("TwentySol", "twenty_sol", "twentysol") or its index ("0").
func ParseTier(s string) (FundingRaiseTier, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		t := FundingRaiseTier(n)
		if n < 0 || !t.IsValid() {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
		}
		return t, nil
	}

	norm := strings.ToLower(strings.ReplaceAll(s, "_", ""))
	for i, p := range tierTable {
		if strings.ToLower(p.Name) == norm {
			return FundingRaiseTier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}
