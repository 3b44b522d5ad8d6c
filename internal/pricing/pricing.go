// Package pricing implements the presale allocation, unit price, refund and fee arithmetic.
//
// Every multiply runs on 256-bit intermediates and every division truncates toward zero,
// so results never round in the counterparty's favor. Results that do not fit uint64 fail
// with ErrOverflow instead of wrapping.
package pricing

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"meme-presale/internal/domain"
)

// Arithmetic errors.
var (
	// ErrOverflow is returned when a result cannot be represented as uint64.
	ErrOverflow = errors.New("calculation overflow")

	// ErrCalculation is returned for undefined operations such as division by zero.
	ErrCalculation = errors.New("calculation error")

	// ErrRefundTooSmall is returned when a refund truncates to zero.
	ErrRefundTooSmall = errors.New("refund amount too small")

	// ErrInvalidBasisPoints is returned for fee rates above 10000 bps.
	ErrInvalidBasisPoints = errors.New("basis points exceed 10000")
)

// mulDiv returns floor(a*b/d) computed on 256-bit words.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrCalculation)
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow {
		// unreachable for 64-bit operands, kept so the contract holds for any word size
		return 0, ErrOverflow
	}
	quotient := new(uint256.Int).Div(product, uint256.NewInt(d))
	result, overflow := quotient.Uint64WithOverflow()
	if overflow {
		return 0, fmt.Errorf("%w: %s does not fit uint64", ErrOverflow, quotient.Dec())
	}
	return result, nil
}

// Allocation returns the token units sold for a deposit:
// floor(SellableSupply * deposit / tierTarget).
func Allocation(deposit uint64, tier domain.FundingRaiseTier) (uint64, error) {
	params, err := tier.Params()
	if err != nil {
		return 0, err
	}
	units, err := mulDiv(domain.SellableSupply, deposit, params.TargetLamports)
	if err != nil {
		return 0, fmt.Errorf("allocation for %d lamports: %w", deposit, err)
	}
	return units, nil
}

// UnitPrice returns floor(tierTarget * Decimals * 10 / 7 / TotalSupply).
func UnitPrice(tier domain.FundingRaiseTier) (uint64, error) {
	params, err := tier.Params()
	if err != nil {
		return 0, err
	}

	scaled := new(uint256.Int).Mul(uint256.NewInt(params.TargetLamports), uint256.NewInt(domain.Decimals))
	scaled.Mul(scaled, uint256.NewInt(10))
	scaled.Div(scaled, uint256.NewInt(7))
	scaled.Div(scaled, uint256.NewInt(domain.TotalSupply))

	price, overflow := scaled.Uint64WithOverflow()
	if overflow {
		return 0, ErrOverflow
	}
	return price, nil
}

// Refund returns the lamports owed for returned token units:
// floor(tierTarget * returned / sellable). Fails with ErrRefundTooSmall on zero.
func Refund(returned uint64, tier domain.FundingRaiseTier, sellable uint64) (uint64, error) {
	params, err := tier.Params()
	if err != nil {
		return 0, err
	}
	lamports, err := mulDiv(params.TargetLamports, returned, sellable)
	if err != nil {
		return 0, fmt.Errorf("refund for %d units: %w", returned, err)
	}
	if lamports == 0 {
		return 0, fmt.Errorf("%w: %d units", ErrRefundTooSmall, returned)
	}
	return lamports, nil
}

// MaxDeposit returns the largest deposit whose allocation still fits in the remaining
// allocation. Useful for quoting a buyer who hit ErrAllocationExhausted.
func MaxDeposit(remaining uint64, tier domain.FundingRaiseTier) (uint64, error) {
	params, err := tier.Params()
	if err != nil {
		return 0, err
	}
	// floor(S*d/T) <= R  <=>  d <= floor(((R+1)*T - 1) / S)
	bound := new(uint256.Int).AddUint64(uint256.NewInt(remaining), 1)
	bound.Mul(bound, uint256.NewInt(params.TargetLamports))
	bound.SubUint64(bound, 1)
	bound.Div(bound, uint256.NewInt(domain.SellableSupply))

	deposit, overflow := bound.Uint64WithOverflow()
	if overflow {
		return 0, ErrOverflow
	}
	return deposit, nil
}
