package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/observability"
	"meme-presale/internal/storage"
)

// Resolution is the status derived from time and fill level.
type Resolution struct {
	Status         domain.LaunchStatus
	DeadlinePassed bool
}

// Resolve derives the launch status at now.
//
// After the deadline a launch is Succeeded only when the whole sellable supply is sold.
// Before the deadline it is Succeeded when sold plus pending units fill the supply, Ongoing otherwise.
// Resolve is pure: equal inputs give equal results.
func Resolve(l *domain.Launch, now int64, sold, pending uint64) Resolution {
	if now >= l.Deadline() {
		if sold == domain.SellableSupply {
			return Resolution{Status: domain.StatusSucceeded, DeadlinePassed: true}
		}
		return Resolution{Status: domain.StatusFailed, DeadlinePassed: true}
	}
	if sold <= domain.SellableSupply && pending == domain.SellableSupply-sold {
		return Resolution{Status: domain.StatusSucceeded}
	}
	return Resolution{Status: domain.StatusOngoing}
}

// applyStatus persists a derived terminal status on l.
// Same status is a no-op. A stored terminal status that differs from the derived one halts the launch.
func (e *Engine) applyStatus(ctx context.Context, l *domain.Launch, to domain.LaunchStatus) error {
	if l.Status == to || !to.IsTerminal() {
		return nil
	}
	if l.Status.IsTerminal() {
		return e.halt(ctx, l, fmt.Errorf("%w: stored %s, derived %s", ErrInconsistentState, l.Status, to))
	}

	from := l.Status
	err := e.launches.UpdateStatus(ctx, l.Key(), from, to)
	if errors.Is(err, storage.ErrStatusConflict) {
		current, loadErr := e.launches.Get(ctx, l.Key())
		if loadErr != nil {
			return fmt.Errorf("reload launch %s: %w", l.Key(), loadErr)
		}
		if current.Status == to {
			l.Status = to
			return nil
		}
		return e.halt(ctx, l, fmt.Errorf("%w: stored %s, derived %s", ErrInconsistentState, current.Status, to))
	}
	if err != nil {
		return fmt.Errorf("update status of %s: %w", l.Key(), err)
	}

	l.Status = to
	observability.RecordTransition(string(from), string(to))
	e.logger.WithFields(logrus.Fields{
		"launch": l.Key().String(),
		"from":   from,
		"to":     to,
	}).Info("launch status transition")
	return nil
}

// halt latches the halted flag and returns cause.
func (e *Engine) halt(ctx context.Context, l *domain.Launch, cause error) error {
	e.logger.WithField("launch", l.Key().String()).Errorf("halting launch: %v", cause)
	if err := e.launches.SetHalted(ctx, l.Key()); err != nil {
		return errors.Join(cause, fmt.Errorf("set halted on %s: %w", l.Key(), err))
	}
	l.Halted = true
	observability.RecordHalt()
	return cause
}
