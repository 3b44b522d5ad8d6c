package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/idhash"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/pricing"
)

// BuyRequest is a purchase of launch tokens.
type BuyRequest struct {
	Launch    domain.LaunchKey
	Buyer     string
	Deposit   uint64 // lamports
	Reference string // caller tag, generated when empty
}

// Buy exchanges Deposit lamports for a pro-rata share of the sellable supply.
//
// A buy after the deadline persists the terminal status and fails with ErrSaleClosed.
// A buy that fills the supply before the deadline succeeds and moves the launch to Succeeded.
// Repeating a buy with the same reference, buyer and deposit returns the recorded receipt
// without moving funds.
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (receipt *domain.PurchaseReceipt, err error) {
	start := time.Now()
	defer func() { e.observe("buy", start, err) }()

	if req.Buyer == "" {
		return nil, fmt.Errorf("%w: buyer is required", ErrInvalidRequest)
	}

	unlock := e.locks.Lock(req.Launch)
	defer unlock()

	l, err := e.loadMutable(ctx, req.Launch)
	if err != nil {
		return nil, err
	}
	if l.OwnsAccount(req.Buyer) {
		return nil, fmt.Errorf("%w: %s cannot buy from its own launch", ErrInvalidRequest, req.Buyer)
	}
	prior, err := e.priorPurchase(ctx, l.Key(), req)
	if err != nil || prior != nil {
		return prior, err
	}
	if l.TokenID == "" {
		return nil, fmt.Errorf("%w: %s", ErrSetupIncomplete, l.Key())
	}
	if l.Status != domain.StatusOngoing {
		return nil, fmt.Errorf("%w: %s is %s", ErrStatusNotOngoing, l.Key(), l.Status)
	}
	if req.Deposit == 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}

	units, err := pricing.Allocation(req.Deposit, l.Tier)
	if err != nil {
		return nil, fmt.Errorf("allocation for %d lamports: %w", req.Deposit, err)
	}
	if units == 0 {
		return nil, fmt.Errorf("%w: %d lamports buy no token units", ErrInvalidAmount, req.Deposit)
	}

	pool, err := e.pool(ctx, l)
	if err != nil {
		return nil, err
	}
	remaining := domain.SellableSupply - pool.Sold
	if units > remaining {
		return nil, fmt.Errorf("%w: %d units requested, %d remaining", ErrAllocationExhausted, units, remaining)
	}

	now := e.now()
	res := Resolve(l, now, pool.Sold, units)
	if res.DeadlinePassed {
		if err := e.applyStatus(ctx, l, res.Status); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s closed at %d", ErrSaleClosed, l.Key(), l.Deadline())
	}

	ref := referenceOrNew(req.Reference)

	price, err := pricing.UnitPrice(l.Tier)
	if err != nil {
		return nil, err
	}

	moves := []ledger.Movement{
		ledger.Debit(req.Buyer, req.Deposit),
		ledger.Credit(l.Address, req.Deposit),
		ledger.TransferTokens(l.TokenID, l.Address, req.Buyer, units),
	}
	if err := e.ledger.Post(ctx, moves); err != nil {
		return nil, fmt.Errorf("post purchase on %s: %w", l.Key(), err)
	}

	if res.Status == domain.StatusSucceeded {
		if err := e.applyStatus(ctx, l, domain.StatusSucceeded); err != nil {
			return nil, err
		}
	}

	receipt = &domain.PurchaseReceipt{
		ReceiptID:  idhash.ComputeReceiptID(domain.ReceiptKindPurchase, l.Key(), req.Buyer, ref),
		Launch:     l.Key(),
		Buyer:      req.Buyer,
		TokenUnits: units,
		TokenID:    l.TokenID,
		UnitPrice:  price,
		Remaining:  remaining - units,
		Reference:  ref,
		Deposit:    req.Deposit,
		Timestamp:  now,
	}
	if err := e.receipts.InsertPurchase(ctx, receipt); err != nil {
		e.logger.WithField("launch", l.Key().String()).Errorf("purchase posted but receipt %s not stored: %v", receipt.ReceiptID, err)
		return receipt, fmt.Errorf("store purchase receipt: %w", err)
	}

	observability.RecordPurchase(l.Tier.String(), units, req.Deposit)
	e.logger.WithFields(logrus.Fields{
		"launch":    l.Key().String(),
		"buyer":     req.Buyer,
		"units":     units,
		"deposit":   domain.FormatLamports(req.Deposit),
		"remaining": receipt.Remaining,
	}).Info("purchase")
	e.publish(ctx, &domain.ReceiptEvent{
		Kind:     domain.ReceiptKindPurchase,
		Launch:   l.Key().String(),
		Purchase: receipt,
	})

	return receipt, nil
}
