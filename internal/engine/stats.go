package engine

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"tradesim/types"
)

// ComputeStats fills the rolling SMA/standard-deviation columns of every
// asset's raw quote series. It must run before NormalizeHistories so the
// statistics reflect real quotations, not forward-filled copies. Assets
// are processed in parallel; each goroutine owns one series.
func (p *Portfolio) ComputeStats(daysShort, daysLong int) error {
	p.DaysShort = daysShort
	p.DaysLong = daysLong

	var g errgroup.Group
	for _, asset := range p.Assets {
		g.Go(func() error {
			rollingStats(asset, daysShort, daysLong)
			return nil
		})
	}
	return g.Wait()
}

func rollingStats(a *types.Asset, short, long int) {
	closes := make([]float64, len(a.Quotes))
	for i, q := range a.Quotes {
		closes[i] = q.Close.InexactFloat64()
	}
	for i := range a.Quotes {
		a.Quotes[i].SMAShort, a.Quotes[i].StdShort = rollingWindow(closes, i, short)
		a.Quotes[i].SMALong, a.Quotes[i].StdLong = rollingWindow(closes, i, long)
	}
}

// rollingWindow returns the trailing mean and sample standard deviation
// ending at index i, or NaN while the window is not yet full.
func rollingWindow(closes []float64, i, n int) (mean, std float64) {
	if i+1 < n {
		return math.NaN(), math.NaN()
	}
	w := closes[i+1-n : i+1]
	return stat.Mean(w, nil), stat.StdDev(w, nil)
}
