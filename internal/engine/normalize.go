package engine

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradesim/calendar"
	"tradesim/types"
)

var hundred = decimal.NewFromInt(100)

// penceThreshold flags a GBP close quoted in pounds while the series
// runs in pence: anything below 2% of the short moving average.
const penceThreshold = 0.02

// NormalizeHistories turns every asset's raw quote series into a dense
// business-day series covering the whole simulation range. Missing days
// are forward-filled from the last known quotation; duplicate dates are
// dropped (first occurrence wins). The resulting rows carry
// zero-initialized position columns. Assets are processed in parallel.
func (p *Portfolio) NormalizeHistories() error {
	days := calendar.Range(p.StartDate, p.EndDate)

	var g errgroup.Group
	for key, asset := range p.Assets {
		log := p.log.With().Str("asset", key).Logger()
		g.Go(func() error {
			normalizeAsset(asset, days, log)
			return nil
		})
	}
	return g.Wait()
}

func normalizeAsset(a *types.Asset, days []calendar.Date, log zerolog.Logger) {
	byDate := dedupeQuotes(a.Quotes, log)

	last := types.ZeroRecord()
	if _, ok := byDate[days[0]]; !ok {
		// Either the asset does not exist yet at range start or the
		// first day is a holiday; a zero row is carried until real
		// data appears.
		log.Warn().Stringer("date", days[0]).Msg("first business day missing from raw series")
	}

	history := make([]types.DailyRecord, 0, len(days))
	for _, d := range days {
		if q, ok := byDate[d]; ok {
			rec := recordFromQuote(q)
			if a.Currency == "GBP" {
				fixPenceQuotation(&rec, d, log)
			}
			last = rec
		} else {
			log.Debug().Stringer("date", d).Msg("missing index in raw series, forward-filling")
		}
		history = append(history, last)
	}
	a.History = history
}

// dedupeQuotes indexes the raw series by date, keeping the first
// occurrence of any duplicated date.
func dedupeQuotes(quotes []types.Quote, log zerolog.Logger) map[calendar.Date]types.Quote {
	byDate := make(map[calendar.Date]types.Quote, len(quotes))
	for _, q := range quotes {
		if _, dup := byDate[q.Date]; dup {
			log.Warn().Stringer("date", q.Date).Msg("duplicate date in raw series, keeping first")
			continue
		}
		byDate[q.Date] = q
	}
	return byDate
}

func recordFromQuote(q types.Quote) types.DailyRecord {
	return types.DailyRecord{
		Open:     q.Open,
		Close:    q.Close,
		SMAShort: q.SMAShort,
		SMALong:  q.SMALong,
		StdShort: q.StdShort,
		StdLong:  q.StdLong,
	}
}

// fixPenceQuotation corrects the recurring GBP/GBp unit confusion: a
// close two orders of magnitude below the short moving average means the
// vendor delivered pounds in a pence series.
func fixPenceQuotation(rec *types.DailyRecord, d calendar.Date, log zerolog.Logger) {
	if math.IsNaN(rec.SMAShort) {
		return
	}
	limit := rec.SMAShort * penceThreshold
	if rec.Close.InexactFloat64() < limit {
		log.Info().Stringer("date", d).Msg("outlier treated as GBP/GBp unit confusion")
		rec.Close = rec.Close.Mul(hundred)
		if rec.Open.InexactFloat64() < limit {
			rec.Open = rec.Open.Mul(hundred)
		}
	}
}
