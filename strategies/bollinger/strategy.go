// Package bollinger implements the two Bollinger-band strategies: the
// trend follower buys upper-band breakouts (works in trending markets)
// and the mean reverter buys recoveries off the lower band (works in
// bounded markets).
package bollinger

import (
	"math"

	"github.com/shopspring/decimal"

	"tradesim/internal/engine"
	"tradesim/strategies/buyhold"
	"tradesim/types"
)

// volatilityGate is the minimum short-window deviation, as a fraction
// of the short average, below which the market is drifting sideways and
// band crossings are noise.
const volatilityGate = 0.03

type Strategy struct {
	name    string
	inverse bool
	seed    *buyhold.Strategy
}

// NewTrend returns the trend-following variant: buy when the close
// crosses above the upper band, sell when it crosses below the lower.
func NewTrend(wishList ...string) *Strategy {
	return &Strategy{
		name:    "Inverse Bollinger Bands",
		inverse: true,
		seed:    buyhold.New(wishList...),
	}
}

// NewMeanRevert returns the mean-reverting variant: buy when the close
// recovers above the lower band, sell when it drops below the upper.
func NewMeanRevert(wishList ...string) *Strategy {
	return &Strategy{
		name: "Bollinger Bands",
		seed: buyhold.New(wishList...),
	}
}

func (s *Strategy) Name() string { return s.name }

// GenerateSignals optionally seeds the schedule with a Buy & Hold pass
// (final-day liquidation suppressed so this strategy owns it), then
// emits a BUY or SELL the business day after each band crossing.
func (s *Strategy) GenerateSignals(p *engine.Portfolio, cfg engine.SimulationConfig) error {
	if cfg.InitialBuy {
		seedCfg := cfg
		seedCfg.SellAll = false
		if err := s.seed.GenerateSignals(p, seedCfg); err != nil {
			return err
		}
	}
	for _, key := range buyhold.SortedAssetKeys(p) {
		asset := p.Assets[key]
		if asset.Class.Category == types.CategoryCurrency {
			continue
		}
		if err := s.scanAsset(p, asset, cfg); err != nil {
			return err
		}
		if cfg.SellAll {
			if err := buyhold.ScheduleFinalSell(p, asset, s.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Strategy) scanAsset(p *engine.Portfolio, asset *types.Asset, cfg engine.SimulationConfig) error {
	start := buyhold.FirstSignalIndex(cfg)
	if start < 1 {
		start = 1
	}
	for i := start; i < p.Days()-1; i++ {
		rec := asset.History[i]
		quot := rec.Close.InexactFloat64()
		if quot <= 0 || !(rec.StdShort > volatilityGate*rec.SMAShort) {
			continue
		}
		prev := asset.History[i-1]
		buy, sell := s.crossings(rec, prev, cfg.WLong)
		if !buy && !sell {
			continue
		}

		verb := types.VerbSell
		note := s.sellReason()
		if buy {
			verb = types.VerbBuy
			note = s.buyReason()
		}
		tx, err := types.NewTransaction(verb, asset, p.History[i+1].Date,
			decimal.Zero, decimal.Zero, note)
		if err != nil {
			return err
		}
		if buy {
			tx.Score = buyhold.Score(rec)
		}
		if err := p.AddPending(tx); err != nil {
			return err
		}
	}
	return nil
}

// crossings detects the day the close moved across a band. NaN
// statistics (window not full, zero-filled listing gaps) make every
// comparison false, so such days never signal.
func (s *Strategy) crossings(rec, prev types.DailyRecord, w float64) (buy, sell bool) {
	quot := rec.Close.InexactFloat64()
	quotOld := prev.Close.InexactFloat64()
	up, down := band(rec, w)
	upOld, downOld := band(prev, w)
	if math.IsNaN(up) || math.IsNaN(upOld) {
		return false, false
	}
	if s.inverse {
		buy = quot > up && quotOld < upOld
		sell = quot < down && quotOld > downOld
		return buy, sell
	}
	buy = quot > down && quotOld < downOld
	sell = quot < up && quotOld > upOld
	return buy, sell
}

func band(rec types.DailyRecord, w float64) (up, down float64) {
	spread := w * rec.StdLong
	return rec.SMALong + spread, rec.SMALong - spread
}

func (s *Strategy) buyReason() string {
	if s.inverse {
		return "TRENDING UP"
	}
	return "CHEAP"
}

func (s *Strategy) sellReason() string {
	if s.inverse {
		return "TRENDING DOWN"
	}
	return "EXPENSIVE"
}
