package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/idhash"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/pricing"
	"meme-presale/internal/storage"
)

// DistributeSuccess pays out the raised target of a succeeded launch: the success fee to the
// fee receiver, the creator gain to the creator, the pool creation fee and the remainder to the
// wrapped SOL liquidity account. It runs once per launch.
func (e *Engine) DistributeSuccess(ctx context.Context, key domain.LaunchKey) (receipt *domain.SettlementReceipt, err error) {
	start := time.Now()
	defer func() { e.observe("distribute", start, err) }()

	unlock := e.locks.Lock(key)
	defer unlock()

	l, err := e.loadMutable(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.TokenID == "" {
		return nil, fmt.Errorf("%w: %s", ErrSetupIncomplete, key)
	}

	pool, err := e.pool(ctx, l)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.applyStatus(ctx, l, Resolve(l, now, pool.Sold, 0).Status); err != nil {
		return nil, err
	}
	if l.Status != domain.StatusSucceeded {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotSucceeded, key, l.Status)
	}
	if l.Settled {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, key)
	}

	cfg, err := e.globalConfig(ctx)
	if err != nil {
		return nil, err
	}

	split, err := pricing.SplitFee(l.Tier.Target(), cfg.SuccessFeeBps)
	if err != nil {
		return nil, err
	}
	wrap, err := pricing.WrapAmount(split, e.poolCreationFee, e.creatorGain)
	if err != nil {
		return nil, fmt.Errorf("wrap amount for %s: %w", key, err)
	}
	if split.Gross > pool.Lamports {
		return nil, e.halt(ctx, l, fmt.Errorf("%w: distribution %d exceeds pool %d", ErrInsufficientPoolBalance, split.Gross, pool.Lamports))
	}

	moves := []ledger.Movement{ledger.Debit(l.Address, split.Gross)}
	for _, leg := range []ledger.Movement{
		ledger.Credit(cfg.FeeReceiver, split.Fee),
		ledger.Credit(l.Creator, e.creatorGain),
		ledger.Credit(l.PoolFeeAccount(), e.poolCreationFee),
		ledger.Credit(l.WrappedSOLAccount(), wrap),
	} {
		if leg.Amount > 0 {
			moves = append(moves, leg)
		}
	}
	if err := e.ledger.Post(ctx, moves); err != nil {
		return nil, fmt.Errorf("post distribution on %s: %w", key, err)
	}

	if err := e.launches.MarkSettled(ctx, key); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, e.halt(ctx, l, fmt.Errorf("%w: %s settled concurrently", ErrInconsistentState, key))
		}
		return nil, fmt.Errorf("mark %s settled: %w", key, err)
	}
	l.Settled = true

	receipt = &domain.SettlementReceipt{
		ReceiptID:       idhash.ComputeReceiptID(domain.ReceiptKindSettlement, key, l.Creator, idhash.ComputeSettlementReference(l.TokenID)),
		Launch:          key,
		TokenID:         l.TokenID,
		GrossRaised:     split.Gross,
		Fee:             split.Fee,
		CreatorGain:     e.creatorGain,
		PoolCreationFee: e.poolCreationFee,
		WrapAmount:      wrap,
		Timestamp:       now,
	}
	if err := e.receipts.InsertSettlement(ctx, receipt); err != nil {
		e.logger.WithField("launch", key.String()).Errorf("distribution posted but receipt %s not stored: %v", receipt.ReceiptID, err)
		return receipt, fmt.Errorf("store settlement receipt: %w", err)
	}

	observability.RecordSettlement(split.Fee)
	e.logger.WithFields(logrus.Fields{
		"launch":       key.String(),
		"gross":        domain.FormatLamports(split.Gross),
		"fee":          domain.FormatLamports(split.Fee),
		"creator_gain": domain.FormatLamports(e.creatorGain),
		"wrap":         domain.FormatLamports(wrap),
	}).Info("success distribution")
	e.publish(ctx, &domain.ReceiptEvent{
		Kind:       domain.ReceiptKindSettlement,
		Launch:     key.String(),
		Settlement: receipt,
	})

	return receipt, nil
}
