package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/types"
)

// SimulationConfig carries the in-process run parameters shared by the
// strategies and the simulation loop.
type SimulationConfig struct {
	// SellAll liquidates every non-currency position on the final day.
	SellAll bool
	// InitialBuy seeds signal-based strategies with a Buy & Hold pass.
	InitialBuy bool
	// WShort and WLong are the Bollinger band multipliers.
	WShort float64
	WLong  float64
	// MaxOrders divides the running net value into the per-order budget.
	MaxOrders decimal.Decimal
	// DaysShort and DaysLong are the rolling statistic windows.
	DaysShort int
	DaysLong  int
}

// DefaultSimulationConfig returns the stock parameters.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		SellAll:    true,
		InitialBuy: true,
		WShort:     1.0,
		WLong:      1.0,
		MaxOrders:  decimal.NewFromInt(25),
		DaysShort:  20,
		DaysLong:   150,
	}
}

// Validate checks the configuration invariants.
func (c SimulationConfig) Validate() error {
	if !c.MaxOrders.IsPositive() {
		return fmt.Errorf("%w: max orders must be positive", types.ErrInvalidArgument)
	}
	if c.DaysShort < 2 {
		return fmt.Errorf("%w: short window must cover at least 2 days", types.ErrInvalidArgument)
	}
	if c.DaysLong <= c.DaysShort {
		return fmt.Errorf("%w: long window must exceed the short window", types.ErrInvalidArgument)
	}
	if c.WShort <= 0 || c.WLong <= 0 {
		return fmt.Errorf("%w: band multipliers must be positive", types.ErrInvalidArgument)
	}
	return nil
}
