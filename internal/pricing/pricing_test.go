package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
)

func TestAllocation(t *testing.T) {
	tests := []struct {
		name    string
		deposit uint64
		tier    domain.FundingRaiseTier
		want    uint64
	}{
		{
			name:    "half of TwentySol target",
			deposit: 10_000_000_000,
			tier:    domain.TierTwentySol,
			want:    350_000_000_000_000,
		},
		{
			name:    "full TwentySol target",
			deposit: 20_000_000_000,
			tier:    domain.TierTwentySol,
			want:    domain.SellableSupply,
		},
		{
			name:    "one lamport on largest tier",
			deposit: 1,
			tier:    domain.TierOneThousandSol,
			want:    700,
		},
		{
			name:    "one SOL on FiftySol",
			deposit: 1_000_000_000,
			tier:    domain.TierFiftySol,
			want:    14_000_000_000_000,
		},
		{
			name:    "zero deposit",
			deposit: 0,
			tier:    domain.TierOneHundredSol,
			want:    0,
		},
		{
			name:    "few lamports on FiveHundredSol",
			deposit: 3,
			tier:    domain.TierFiveHundredSol,
			want:    4_200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocation(tt.deposit, tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocation_ProductExceeds64Bits(t *testing.T) {
	// SellableSupply * 1e12 overflows uint64 but the quotient fits.
	got, err := Allocation(1_000_000_000_000, domain.TierOneThousandSol)
	require.NoError(t, err)
	assert.Equal(t, domain.SellableSupply, got)
}

func TestAllocation_Overflow(t *testing.T) {
	_, err := Allocation(math.MaxUint64, domain.TierTwentySol)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverflow))
}

func TestAllocation_InvalidTier(t *testing.T) {
	_, err := Allocation(1, domain.FundingRaiseTier(9))
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestUnitPrice(t *testing.T) {
	tests := []struct {
		tier domain.FundingRaiseTier
		want uint64
	}{
		{domain.TierTwentySol, 28},       // 20e9*1e6*10/7/1e15 = 28.57
		{domain.TierFiftySol, 71},        // 71.42
		{domain.TierOneHundredSol, 142},  // 142.85
		{domain.TierFiveHundredSol, 714}, // 714.28
		{domain.TierOneThousandSol, 1428},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			got, err := UnitPrice(tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := UnitPrice(tt.tier)
			require.NoError(t, err)
			assert.Equal(t, got, again, "unit price must be deterministic")
		})
	}
}

func TestRefund(t *testing.T) {
	got, err := Refund(350_000_000_000_000, domain.TierTwentySol, domain.SellableSupply)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000), got)

	// Refund for a full allocation returns the whole target.
	got, err = Refund(domain.SellableSupply, domain.TierOneThousandSol, domain.SellableSupply)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000_000), got)
}

func TestRefund_TooSmall(t *testing.T) {
	// 20e9 * 34999 / 700e12 = 0.99997
	_, err := Refund(34_999, domain.TierTwentySol, domain.SellableSupply)
	assert.ErrorIs(t, err, ErrRefundTooSmall)

	got, err := Refund(35_000, domain.TierTwentySol, domain.SellableSupply)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestRefund_ZeroSellable(t *testing.T) {
	_, err := Refund(1, domain.TierTwentySol, 0)
	assert.ErrorIs(t, err, ErrCalculation)
}

func TestRefund_NeverExceedsDeposit(t *testing.T) {
	// Buying and refunding the same allocation never returns more than was paid.
	deposits := []uint64{1, 7, 999, 123_456_789, 3_333_333_333, 19_999_999_999}
	for _, tier := range domain.AllTiers() {
		for _, d := range deposits {
			units, err := Allocation(d, tier)
			require.NoError(t, err)
			if units == 0 {
				continue
			}
			refund, err := Refund(units, tier, domain.SellableSupply)
			if errors.Is(err, ErrRefundTooSmall) {
				continue
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, refund, d, "tier %s deposit %d", tier, d)
		}
	}
}

func TestMaxDeposit(t *testing.T) {
	for _, tier := range domain.AllTiers() {
		for _, remaining := range []uint64{0, 1, 699, 700, 1_000_000, domain.SellableSupply / 3, domain.SellableSupply} {
			d, err := MaxDeposit(remaining, tier)
			require.NoError(t, err)

			units, err := Allocation(d, tier)
			require.NoError(t, err)
			assert.LessOrEqual(t, units, remaining, "tier %s remaining %d", tier, remaining)

			over, err := Allocation(d+1, tier)
			require.NoError(t, err)
			assert.Greater(t, over, remaining, "tier %s remaining %d: deposit %d is not maximal", tier, remaining, d)
		}
	}
}
