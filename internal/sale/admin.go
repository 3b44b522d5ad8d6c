package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/storage"
)

// EnsureGlobalConfig stores cfg when no global config exists yet and returns the stored config.
// An existing config is never overwritten.
func (e *Engine) EnsureGlobalConfig(ctx context.Context, cfg *domain.GlobalConfig) (*domain.GlobalConfig, error) {
	current, err := e.configs.Get(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load global config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.configs.Put(ctx, cfg); err != nil {
		return nil, fmt.Errorf("store global config: %w", err)
	}
	e.logger.WithFields(logrus.Fields{
		"admin":           cfg.Admin,
		"fee_receiver":    cfg.FeeReceiver,
		"success_fee_bps": cfg.SuccessFeeBps,
	}).Info("global config initialized")

	stored := *cfg
	return &stored, nil
}

// UpdateGlobalConfig replaces the global config. The caller must be the current admin.
func (e *Engine) UpdateGlobalConfig(ctx context.Context, caller string, cfg *domain.GlobalConfig) error {
	current, err := e.globalConfig(ctx)
	if err != nil {
		return err
	}
	if caller == "" || caller != current.Admin {
		return fmt.Errorf("%w: %q is not the admin", ErrUnauthorized, caller)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.configs.Put(ctx, cfg); err != nil {
		return fmt.Errorf("store global config: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"admin":           cfg.Admin,
		"fee_receiver":    cfg.FeeReceiver,
		"success_fee_bps": cfg.SuccessFeeBps,
	}).Info("global config updated")
	return nil
}

// GlobalConfig returns the current global config.
func (e *Engine) GlobalConfig(ctx context.Context) (*domain.GlobalConfig, error) {
	return e.globalConfig(ctx)
}
