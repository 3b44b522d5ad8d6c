package pricing

import (
	"fmt"

	"meme-presale/internal/domain"
)

// FeeSplit is the result of extracting a basis-point fee from a gross amount.
type FeeSplit struct {
	Gross uint64
	Fee   uint64
	Net   uint64
}

// SplitFee returns fee = floor(gross * bps / 10000) and net = gross - fee.
// fee never exceeds gross.
func SplitFee(gross uint64, bps uint16) (FeeSplit, error) {
	if uint64(bps) > domain.BasisPointsDenominator {
		return FeeSplit{}, fmt.Errorf("%w: %d", ErrInvalidBasisPoints, bps)
	}
	fee, err := mulDiv(gross, uint64(bps), domain.BasisPointsDenominator)
	if err != nil {
		return FeeSplit{}, fmt.Errorf("fee on %d: %w", gross, err)
	}
	return FeeSplit{Gross: gross, Fee: fee, Net: gross - fee}, nil
}

// WrapAmount returns the lamports forwarded to the liquidity pool after a successful launch:
// net(target) - poolCreationFee - creatorGain.
func WrapAmount(split FeeSplit, poolCreationFee, creatorGain uint64) (uint64, error) {
	deductions := poolCreationFee + creatorGain
	if deductions < poolCreationFee || deductions > split.Net {
		return 0, fmt.Errorf("%w: net %d below pool fee %d + creator gain %d",
			ErrCalculation, split.Net, poolCreationFee, creatorGain)
	}
	return split.Net - deductions, nil
}
