package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/address"
	"meme-presale/internal/domain"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/storage"
)

// CreateRequest opens a new launch.
type CreateRequest struct {
	Creator  string
	Tier     domain.FundingRaiseTier
	Metadata domain.LaunchMetadata
}

// CreateLaunch allocates the creator's next launch index, derives the launch address and
// stores the launch as Ongoing with the sale window starting now.
func (e *Engine) CreateLaunch(ctx context.Context, req CreateRequest) (launch *domain.Launch, err error) {
	start := time.Now()
	defer func() { e.observe("create", start, err) }()

	if req.Creator == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidRequest)
	}
	if !req.Tier.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTier, req.Tier)
	}

	index, err := e.counters.Next(ctx, req.Creator)
	if err != nil {
		return nil, fmt.Errorf("next launch index for %s: %w", req.Creator, err)
	}
	addr, err := e.addresses.LaunchAddress(req.Creator, index)
	if err != nil {
		return nil, fmt.Errorf("derive launch address: %w", err)
	}

	launch = &domain.Launch{
		Creator:     req.Creator,
		Index:       index,
		Address:     addr,
		CreatedTime: e.now(),
		Tier:        req.Tier,
		Status:      domain.StatusOngoing,
		Metadata:    req.Metadata,
	}
	if err := e.launches.Insert(ctx, launch); err != nil {
		return nil, fmt.Errorf("insert launch %s: %w", launch.Key(), err)
	}

	observability.RecordLaunchCreated(req.Tier.String())
	e.logger.WithFields(logrus.Fields{
		"launch":   launch.Key().String(),
		"address":  addr,
		"tier":     req.Tier.String(),
		"deadline": launch.Deadline(),
	}).Info("launch created")

	return launch, nil
}

// MintRequest mints the launch token.
type MintRequest struct {
	Launch domain.LaunchKey
	Caller string
	Seed   uint64 // mint address seed
}

// MintToken derives the mint address, mints the sellable supply into the launch pool and the
// reserve into the reserve account, and revokes minting. Only the creator may call it, once.
func (e *Engine) MintToken(ctx context.Context, req MintRequest) (created *domain.LaunchCreated, err error) {
	start := time.Now()
	defer func() { e.observe("mint", start, err) }()

	unlock := e.locks.Lock(req.Launch)
	defer unlock()

	l, err := e.loadMutable(ctx, req.Launch)
	if err != nil {
		return nil, err
	}
	if req.Caller != l.Creator {
		return nil, fmt.Errorf("%w: %q is not the creator of %s", ErrUnauthorized, req.Caller, l.Key())
	}
	if l.TokenID != "" {
		return nil, fmt.Errorf("%w: %s has mint %s", ErrAlreadyMinted, l.Key(), l.TokenID)
	}

	mint, err := e.addresses.MintAddress(req.Seed)
	if err != nil {
		return nil, fmt.Errorf("derive mint address: %w", err)
	}
	if !address.HasSuffix(mint, e.mintSuffix) {
		return nil, fmt.Errorf("%w: %s does not end with %q", ErrInvalidMintAddress, mint, e.mintSuffix)
	}

	allocations := []ledger.Allocation{
		{Account: l.Address, Amount: domain.SellableSupply},
		{Account: l.ReserveAccount(), Amount: domain.ReserveSupply},
	}
	if err := e.ledger.Mint(ctx, mint, allocations); err != nil {
		return nil, fmt.Errorf("mint %s: %w", mint, err)
	}

	if err := e.launches.SetToken(ctx, l.Key(), mint); err != nil {
		if errors.Is(err, storage.ErrTokenAlreadySet) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMinted, l.Key())
		}
		return nil, fmt.Errorf("set token of %s: %w", l.Key(), err)
	}
	l.TokenID = mint

	created = &domain.LaunchCreated{
		Creator:     l.Creator,
		Index:       l.Index,
		Address:     l.Address,
		TokenID:     mint,
		Reserve:     l.ReserveAccount(),
		CreatedTime: l.CreatedTime,
		Tier:        uint8(l.Tier),
		Metadata:    l.Metadata,
	}

	observability.RecordTokenMinted()
	e.logger.WithFields(logrus.Fields{
		"launch": l.Key().String(),
		"mint":   mint,
		"supply": domain.FormatTokens(domain.TotalSupply),
	}).Info("launch token minted")
	e.publish(ctx, &domain.ReceiptEvent{
		Kind:    domain.ReceiptKindCreated,
		Launch:  l.Key().String(),
		Created: created,
	})

	return created, nil
}
