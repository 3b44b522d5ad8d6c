package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidGlobalConfig is returned when GlobalConfig validation fails.
var ErrInvalidGlobalConfig = errors.New("invalid global config")

// GlobalConfig holds process-wide, admin-controlled parameters.
// Corresponds to the global_config table in PostgreSQL (single row).
type GlobalConfig struct {
	Admin         string // identity allowed to update this config
	SuccessFeeBps uint16 // fee on refunds and success distribution, 0..10000
	FeeReceiver   string // account credited with fees
}

// Validate checks field ranges and required identities.
func (c *GlobalConfig) Validate() error {
	if c.Admin == "" {
		return fmt.Errorf("%w: admin is required", ErrInvalidGlobalConfig)
	}
	if c.FeeReceiver == "" {
		return fmt.Errorf("%w: fee receiver is required", ErrInvalidGlobalConfig)
	}
	if uint64(c.SuccessFeeBps) > BasisPointsDenominator {
		return fmt.Errorf("%w: success fee %d bps exceeds %d", ErrInvalidGlobalConfig, c.SuccessFeeBps, BasisPointsDenominator)
	}
	return nil
}
