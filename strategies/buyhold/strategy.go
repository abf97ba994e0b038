// Package buyhold implements the baseline strategy: buy each wished
// asset once and hold it, optionally liquidating on the final day. It
// is the benchmark every signal-based strategy is compared against.
package buyhold

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/engine"
	"tradesim/types"
)

type Strategy struct {
	// wishList restricts buying to these symbols; empty means every
	// non-currency asset on the portfolio.
	wishList []string
}

func New(wishList ...string) *Strategy {
	return &Strategy{wishList: wishList}
}

func (s *Strategy) Name() string { return "BUY and HOLD" }

// GenerateSignals schedules one BUY per wished asset on the first
// Wednesday after the long statistic window (executed the next business
// day), and, when configured, a SELL of every non-currency asset on the
// final day.
func (s *Strategy) GenerateSignals(p *engine.Portfolio, cfg engine.SimulationConfig) error {
	wished := s.wishedSymbols(p)
	for _, key := range SortedAssetKeys(p) {
		asset := p.Assets[key]
		if wished[asset.Symbol] {
			if err := s.scheduleFirstBuy(p, asset, cfg); err != nil {
				return err
			}
		}
		if cfg.SellAll {
			if err := ScheduleFinalSell(p, asset, s.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Strategy) wishedSymbols(p *engine.Portfolio) map[string]bool {
	wished := make(map[string]bool, len(s.wishList))
	for _, symbol := range s.wishList {
		wished[symbol] = true
	}
	if len(s.wishList) == 0 {
		for _, asset := range p.Assets {
			if asset.Class.Category != types.CategoryCurrency {
				wished[asset.Symbol] = true
			}
		}
	}
	return wished
}

// scheduleFirstBuy walks the weekly grid and emits a single BUY on the
// first Wednesday with a positive quotation, dated the next business
// day. Only one lot per asset: this is buy and hold, not accumulation.
func (s *Strategy) scheduleFirstBuy(p *engine.Portfolio, asset *types.Asset, cfg engine.SimulationConfig) error {
	if asset.Class.Category == types.CategoryCurrency {
		return nil
	}
	for i := FirstSignalIndex(cfg); i < p.Days()-1; i++ {
		if p.History[i].Date.Weekday() != time.Wednesday {
			continue
		}
		rec := asset.History[i]
		if !rec.Close.IsPositive() {
			continue
		}
		tx, err := types.NewTransaction(types.VerbBuy, asset, p.History[i+1].Date,
			decimal.Zero, decimal.Zero, s.Name())
		if err != nil {
			return err
		}
		tx.Score = Score(rec)
		return p.AddPending(tx)
	}
	return nil
}

// Score ranks competing BUY signals: recent volatility relative to the
// quotation, scaled to the neutral default.
func Score(rec types.DailyRecord) float64 {
	return 100.0 * rec.StdShort / rec.Close.InexactFloat64()
}

// FirstSignalIndex is the first day offset with a full long statistic
// window behind it. Signals before it would act on partial data.
func FirstSignalIndex(cfg engine.SimulationConfig) int {
	return cfg.DaysLong
}

// SortedAssetKeys fixes the asset iteration order so runs are
// reproducible.
func SortedAssetKeys(p *engine.Portfolio) []string {
	keys := make([]string, 0, len(p.Assets))
	for key := range p.Assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ScheduleFinalSell schedules the liquidation of a non-currency asset
// on the portfolio's final day.
func ScheduleFinalSell(p *engine.Portfolio, asset *types.Asset, note string) error {
	if asset.Class.Category == types.CategoryCurrency {
		return nil
	}
	tx, err := types.NewTransaction(types.VerbSell, asset, p.EndDate,
		decimal.Zero, decimal.Zero, note)
	if err != nil {
		return fmt.Errorf("final sell for %s: %w", asset.Symbol, err)
	}
	return p.AddPending(tx)
}
