package sale

import (
	"context"
	"fmt"

	"meme-presale/internal/domain"
	"meme-presale/internal/pricing"
)

// StatusView is a read-only snapshot of a launch.
type StatusView struct {
	Launch         *domain.Launch
	StoredStatus   domain.LaunchStatus
	DerivedStatus  domain.LaunchStatus // status the next mutating call would act on
	Sold           uint64
	Remaining      uint64
	UnitPrice      uint64
	PoolLamports   uint64
	Deadline       int64
	DeadlinePassed bool
}

// Launch returns a launch by key.
func (e *Engine) Launch(ctx context.Context, key domain.LaunchKey) (*domain.Launch, error) {
	return e.load(ctx, key)
}

// LaunchesByCreator returns the launches of a creator ordered by index.
func (e *Engine) LaunchesByCreator(ctx context.Context, creator string) ([]*domain.Launch, error) {
	return e.launches.ListByCreator(ctx, creator)
}

// Status returns the launch snapshot. It never persists a transition.
func (e *Engine) Status(ctx context.Context, key domain.LaunchKey) (*StatusView, error) {
	l, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	sold, lamports, err := e.readPool(ctx, l)
	if err != nil {
		return nil, err
	}
	price, err := pricing.UnitPrice(l.Tier)
	if err != nil {
		return nil, err
	}

	res := Resolve(l, e.now(), sold, 0)
	derived := res.Status
	if l.Status.IsTerminal() {
		derived = l.Status
	}
	return &StatusView{
		Launch:         l,
		StoredStatus:   l.Status,
		DerivedStatus:  derived,
		Sold:           sold,
		Remaining:      domain.SellableSupply - sold,
		UnitPrice:      price,
		PoolLamports:   lamports,
		Deadline:       l.Deadline(),
		DeadlinePassed: res.DeadlinePassed,
	}, nil
}

// SoldAmount returns the token units sold and not returned.
func (e *Engine) SoldAmount(ctx context.Context, key domain.LaunchKey) (uint64, error) {
	l, err := e.load(ctx, key)
	if err != nil {
		return 0, err
	}
	sold, _, err := e.readPool(ctx, l)
	return sold, err
}

// UnitPrice returns the display price of one whole token in lamports.
func (e *Engine) UnitPrice(ctx context.Context, key domain.LaunchKey) (uint64, error) {
	l, err := e.load(ctx, key)
	if err != nil {
		return 0, err
	}
	return pricing.UnitPrice(l.Tier)
}

// Quote returns the units a deposit buys now and the largest deposit the remaining supply accepts.
func (e *Engine) Quote(ctx context.Context, key domain.LaunchKey, deposit uint64) (units, maxDeposit uint64, err error) {
	l, err := e.load(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	sold, _, err := e.readPool(ctx, l)
	if err != nil {
		return 0, 0, err
	}
	units, err = pricing.Allocation(deposit, l.Tier)
	if err != nil {
		return 0, 0, err
	}
	maxDeposit, err = pricing.MaxDeposit(domain.SellableSupply-sold, l.Tier)
	if err != nil {
		return 0, 0, err
	}
	return units, maxDeposit, nil
}

// Purchases returns the purchase receipts of a launch.
func (e *Engine) Purchases(ctx context.Context, key domain.LaunchKey) ([]*domain.PurchaseReceipt, error) {
	return e.receipts.GetPurchases(ctx, key)
}

// Claims returns the claim receipts of a launch.
func (e *Engine) Claims(ctx context.Context, key domain.LaunchKey) ([]*domain.ClaimReceipt, error) {
	return e.receipts.GetClaims(ctx, key)
}

// readPool reads pool balances without side effects. An oversized token pool is reported,
// not halted; the next mutating call halts the launch.
func (e *Engine) readPool(ctx context.Context, l *domain.Launch) (sold, lamports uint64, err error) {
	if l.TokenID != "" {
		supply, err := e.ledger.Supply(ctx, l.TokenID)
		if err != nil {
			return 0, 0, fmt.Errorf("read supply of %s: %w", l.TokenID, err)
		}
		if supply != domain.TotalSupply {
			return 0, 0, fmt.Errorf("%w: token %s supply %d, want %d", ErrInconsistentState, l.TokenID, supply, domain.TotalSupply)
		}
		tokens, err := e.ledger.TokenBalance(ctx, l.TokenID, l.Address)
		if err != nil {
			return 0, 0, fmt.Errorf("read token pool of %s: %w", l.Key(), err)
		}
		if tokens > domain.SellableSupply {
			return 0, 0, fmt.Errorf("%w: token pool %d exceeds sellable supply", ErrInconsistentState, tokens)
		}
		sold = domain.SellableSupply - tokens
	}
	lamports, err = e.ledger.Balance(ctx, l.Address)
	if err != nil {
		return 0, 0, fmt.Errorf("read lamport pool of %s: %w", l.Key(), err)
	}
	return sold, lamports, nil
}
