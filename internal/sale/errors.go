package sale

import (
	"errors"

	"meme-presale/internal/address"
	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
	"meme-presale/internal/pricing"
)

// Sale errors.
var (
	// ErrLaunchNotFound is returned when no launch exists for the key.
	ErrLaunchNotFound = errors.New("launch not found")

	// ErrLaunchHalted is returned for every mutating call on a halted launch.
	ErrLaunchHalted = errors.New("launch halted")

	// ErrSetupIncomplete is returned when the launch token has not been minted.
	ErrSetupIncomplete = errors.New("launch token not minted")

	// ErrStatusNotOngoing is returned by Buy when the stored status is terminal.
	ErrStatusNotOngoing = errors.New("launch status is not ongoing")

	// ErrInvalidAmount is returned for zero deposits and zero claims.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRequest is returned for requests with missing fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAllocationExhausted is returned when a buy would exceed the sellable supply.
	ErrAllocationExhausted = errors.New("allocation exhausted")

	// ErrSaleClosed is returned by Buy once the deadline has passed.
	ErrSaleClosed = errors.New("sale closed")

	// ErrClaimsClosedOnSuccess is returned by Claim on a succeeded launch.
	ErrClaimsClosedOnSuccess = errors.New("claims closed: launch succeeded")

	// ErrSaleNotYetResolvable is returned by Claim before the deadline.
	ErrSaleNotYetResolvable = errors.New("sale not yet resolvable")

	// ErrInsufficientPoolBalance is returned when the launch lamport pool cannot cover a payout.
	ErrInsufficientPoolBalance = errors.New("insufficient pool balance")

	// ErrInconsistentState is returned when stored and derived state disagree.
	ErrInconsistentState = errors.New("inconsistent launch state")

	// ErrNotSucceeded is returned by DistributeSuccess on launches that did not succeed.
	ErrNotSucceeded = errors.New("launch has not succeeded")

	// ErrAlreadySettled is returned by DistributeSuccess on a second call.
	ErrAlreadySettled = errors.New("launch already settled")

	// ErrAlreadyMinted is returned by MintToken when the launch token exists.
	ErrAlreadyMinted = errors.New("launch token already minted")

	// ErrInvalidMintAddress is returned when the mint address lacks the required suffix.
	ErrInvalidMintAddress = errors.New("invalid mint address")

	// ErrUnauthorized is returned when the caller is not allowed to perform the call.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateReference is returned when a reference was already recorded for the launch.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrConfigMissing is returned when the global config was never initialized.
	ErrConfigMissing = errors.New("global config not initialized")
)

// ErrorClass groups errors by how callers should react.
type ErrorClass string

const (
	ClassNone         ErrorClass = ""
	ClassPrecondition ErrorClass = "precondition" // state does not allow the call
	ClassCapacity     ErrorClass = "capacity"     // supply exhausted
	ClassArithmetic   ErrorClass = "arithmetic"   // overflow, dust, calculation
	ClassInvalid      ErrorClass = "invalid"      // malformed input
	ClassConsistency  ErrorClass = "consistency"  // launch halted as a result
	ClassLedger       ErrorClass = "ledger"       // balance movement rejected
	ClassNotFound     ErrorClass = "not_found"
	ClassUnauthorized ErrorClass = "unauthorized"
	ClassStorage      ErrorClass = "storage"
)

// Classify returns the class of err.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInconsistentState), errors.Is(err, ErrInsufficientPoolBalance):
		return ClassConsistency
	case errors.Is(err, ErrLaunchNotFound):
		return ClassNotFound
	case errors.Is(err, ErrUnauthorized):
		return ClassUnauthorized
	case errors.Is(err, ErrAllocationExhausted):
		return ClassCapacity
	case errors.Is(err, ErrLaunchHalted),
		errors.Is(err, ErrSetupIncomplete),
		errors.Is(err, ErrStatusNotOngoing),
		errors.Is(err, ErrSaleClosed),
		errors.Is(err, ErrClaimsClosedOnSuccess),
		errors.Is(err, ErrSaleNotYetResolvable),
		errors.Is(err, ErrNotSucceeded),
		errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrAlreadyMinted),
		errors.Is(err, ErrDuplicateReference),
		errors.Is(err, ErrConfigMissing),
		errors.Is(err, ledger.ErrMintRevoked):
		return ClassPrecondition
	case errors.Is(err, pricing.ErrOverflow),
		errors.Is(err, pricing.ErrCalculation),
		errors.Is(err, pricing.ErrRefundTooSmall):
		return ClassArithmetic
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidMintAddress),
		errors.Is(err, domain.ErrInvalidTier),
		errors.Is(err, domain.ErrInvalidGlobalConfig),
		errors.Is(err, pricing.ErrInvalidBasisPoints),
		errors.Is(err, address.ErrSeedTooLong):
		return ClassInvalid
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientTokenBalance),
		errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrInvalidMovement),
		errors.Is(err, ledger.ErrBalanceOverflow):
		return ClassLedger
	default:
		return ClassStorage
	}
}
