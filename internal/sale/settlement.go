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

// ClaimRequest returns token units to a failed launch for a lamport refund.
type ClaimRequest struct {
	Launch    domain.LaunchKey
	Claimer   string
	Units     uint64
	Reference string // caller tag, generated when empty
}

// Claim refunds a pro-rata share of the target for Units returned tokens, minus the success fee.
//
// Claims open once the deadline passes without a full fill. A claim that is the first call
// after the deadline persists the Failed status and proceeds in the same call.
// Repeating a claim with the same reference, claimer and units returns the recorded receipt.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (receipt *domain.ClaimReceipt, err error) {
	start := time.Now()
	defer func() { e.observe("claim", start, err) }()

	if req.Claimer == "" {
		return nil, fmt.Errorf("%w: claimer is required", ErrInvalidRequest)
	}

	unlock := e.locks.Lock(req.Launch)
	defer unlock()

	l, err := e.loadMutable(ctx, req.Launch)
	if err != nil {
		return nil, err
	}
	if l.OwnsAccount(req.Claimer) {
		return nil, fmt.Errorf("%w: %s cannot claim from its own launch", ErrInvalidRequest, req.Claimer)
	}
	prior, err := e.priorClaim(ctx, l.Key(), req)
	if err != nil || prior != nil {
		return prior, err
	}
	if req.Units == 0 {
		return nil, fmt.Errorf("%w: claim units must be positive", ErrInvalidAmount)
	}
	if l.TokenID == "" {
		return nil, fmt.Errorf("%w: %s", ErrSetupIncomplete, l.Key())
	}
	if l.Status == domain.StatusSucceeded {
		return nil, fmt.Errorf("%w: %s", ErrClaimsClosedOnSuccess, l.Key())
	}

	pool, err := e.pool(ctx, l)
	if err != nil {
		return nil, err
	}

	now := e.now()
	res := Resolve(l, now, pool.Sold, 0)
	if !res.DeadlinePassed {
		return nil, fmt.Errorf("%w: %s closes at %d", ErrSaleNotYetResolvable, l.Key(), l.Deadline())
	}
	if err := e.applyStatus(ctx, l, res.Status); err != nil {
		return nil, err
	}
	if l.Status == domain.StatusSucceeded {
		return nil, fmt.Errorf("%w: %s", ErrClaimsClosedOnSuccess, l.Key())
	}

	if req.Units > pool.Sold {
		return nil, fmt.Errorf("%w: %d units returned, %d sold", ErrInvalidAmount, req.Units, pool.Sold)
	}

	cfg, err := e.globalConfig(ctx)
	if err != nil {
		return nil, err
	}

	gross, err := pricing.Refund(req.Units, l.Tier, domain.SellableSupply)
	if err != nil {
		return nil, fmt.Errorf("refund for %d units: %w", req.Units, err)
	}
	split, err := pricing.SplitFee(gross, cfg.SuccessFeeBps)
	if err != nil {
		return nil, err
	}

	if gross > pool.Lamports {
		return nil, e.halt(ctx, l, fmt.Errorf("%w: refund %d exceeds pool %d", ErrInsufficientPoolBalance, gross, pool.Lamports))
	}

	ref := referenceOrNew(req.Reference)

	price, err := pricing.UnitPrice(l.Tier)
	if err != nil {
		return nil, err
	}

	moves := []ledger.Movement{
		ledger.TransferTokens(l.TokenID, req.Claimer, l.Address, req.Units),
		ledger.Debit(l.Address, split.Gross),
	}
	if split.Net > 0 {
		moves = append(moves, ledger.Credit(req.Claimer, split.Net))
	}
	if split.Fee > 0 {
		moves = append(moves, ledger.Credit(cfg.FeeReceiver, split.Fee))
	}
	if err := e.ledger.Post(ctx, moves); err != nil {
		return nil, fmt.Errorf("post claim on %s: %w", l.Key(), err)
	}

	receipt = &domain.ClaimReceipt{
		ReceiptID:   idhash.ComputeReceiptID(domain.ReceiptKindClaim, l.Key(), req.Claimer, ref),
		Launch:      l.Key(),
		Claimer:     req.Claimer,
		TokenUnits:  req.Units,
		TokenID:     l.TokenID,
		UnitPrice:   price,
		GrossRefund: split.Gross,
		Fee:         split.Fee,
		NetRefund:   split.Net,
		Reference:   ref,
		Timestamp:   now,
	}
	if err := e.receipts.InsertClaim(ctx, receipt); err != nil {
		e.logger.WithField("launch", l.Key().String()).Errorf("claim posted but receipt %s not stored: %v", receipt.ReceiptID, err)
		return receipt, fmt.Errorf("store claim receipt: %w", err)
	}

	observability.RecordClaim(l.Tier.String(), req.Units, split.Net, split.Fee)
	e.logger.WithFields(logrus.Fields{
		"launch":  l.Key().String(),
		"claimer": req.Claimer,
		"units":   req.Units,
		"refund":  domain.FormatLamports(split.Net),
		"fee":     domain.FormatLamports(split.Fee),
	}).Info("claim")
	e.publish(ctx, &domain.ReceiptEvent{
		Kind:   domain.ReceiptKindClaim,
		Launch: l.Key().String(),
		Claim:  receipt,
	})

	return receipt, nil
}
