package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Amount parsing errors.
var (
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// FormatLamports renders a lamport amount as SOL with 9 decimal places trimmed.
func FormatLamports(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-9).String()
}

// FormatTokens renders raw token units with the token's 6 decimals.
func FormatTokens(units uint64) string {
	return decimal.NewFromUint64(units).Shift(-int32(TokenDecimals)).String()
}

// ParseSOL converts a decimal SOL string ("1.5") into lamports.
// Fractions below one lamport are truncated.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	lamports := d.Shift(9).Truncate(0)
	if lamports.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, ErrAmountOutOfRange
	}
	return lamports.BigInt().Uint64(), nil
}
