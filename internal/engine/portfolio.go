package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesim/calendar"
	"tradesim/types"
)

// HistoryRow is one day of aggregate portfolio state, in the default
// currency.
type HistoryRow struct {
	Date             calendar.Date
	Liquidity        decimal.Decimal
	NetValue         decimal.Decimal
	TotalCommissions decimal.Decimal
	TotalDividends   decimal.Decimal
	TotalTaxes       decimal.Decimal
}

// Portfolio aggregates the assets under simulation, the per-day history
// arena and the three transaction ledgers. Every per-day collection is a
// fixed array indexed by business-day offset from StartDate, so range
// completeness holds by construction. The portfolio is mutated
// exclusively by the simulation during a run and is read-only afterward.
type Portfolio struct {
	Description     string
	DefaultCurrency string
	StartDate       calendar.Date
	EndDate         calendar.Date
	InitialCapital  decimal.Decimal
	DaysShort       int
	DaysLong        int

	// Assets is keyed by list symbol; the reserved currency
	// pseudo-assets are keyed by currency code (USD, GBP, CHF).
	Assets map[string]*types.Asset

	History  []HistoryRow
	Pending  [][]*types.Transaction
	Executed []*types.Transaction
	Failed   []*types.Transaction

	log zerolog.Logger
}

// NewPortfolio builds a portfolio covering [start, end] with one history
// row per business day, all pre-filled with the initial capital.
func NewPortfolio(start, end calendar.Date, initialCapital decimal.Decimal, description string, log zerolog.Logger) (*Portfolio, error) {
	if !start.IsBusinessDay() || !end.IsBusinessDay() {
		return nil, fmt.Errorf("%w: start and end must be business days", types.ErrInvalidArgument)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end date %s not after start date %s", types.ErrInvalidArgument, end, start)
	}
	if initialCapital.IsNegative() {
		return nil, fmt.Errorf("%w: initial capital must not be negative", types.ErrInvalidArgument)
	}

	days := calendar.Range(start, end)
	history := make([]HistoryRow, len(days))
	for i, d := range days {
		history[i] = HistoryRow{
			Date:      d,
			Liquidity: initialCapital,
			NetValue:  initialCapital,
		}
	}

	return &Portfolio{
		Description:     description,
		DefaultCurrency: "EUR",
		StartDate:       start,
		EndDate:         end,
		InitialCapital:  initialCapital,
		Assets:          make(map[string]*types.Asset),
		History:         history,
		Pending:         make([][]*types.Transaction, len(days)),
		log:             log.With().Str("component", "portfolio").Logger(),
	}, nil
}

// Days returns the number of business days in the simulation range.
func (p *Portfolio) Days() int { return len(p.History) }

// Index maps a date to its business-day offset, or -1 when the date is
// outside the simulation range or not a business day.
func (p *Portfolio) Index(d calendar.Date) int {
	idx := calendar.Index(p.StartDate, d)
	if idx < 0 || idx >= len(p.History) {
		return -1
	}
	return idx
}

// Row returns the history row for a date, or nil when out of range.
func (p *Portfolio) Row(d calendar.Date) *HistoryRow {
	idx := p.Index(d)
	if idx < 0 {
		return nil
	}
	return &p.History[idx]
}

// FinalRow returns the last history row of the range.
func (p *Portfolio) FinalRow() *HistoryRow { return &p.History[len(p.History)-1] }

// reservedCurrencies maps the supported foreign currencies to the FX
// symbol quoting them in EUR.
var reservedCurrencies = map[string]string{
	"USD": "USDEUR=X",
	"GBP": "GBPEUR=X",
	"CHF": "CHFEUR=X",
}

// RegisterCurrencyAssets adds the reserved currency-conversion
// pseudo-assets for the default currency.
func (p *Portfolio) RegisterCurrencyAssets() error {
	if p.DefaultCurrency != "EUR" {
		return fmt.Errorf("%w: default currencies other than EUR not implemented", types.ErrInvalidArgument)
	}
	for code, symbol := range reservedCurrencies {
		p.Assets[code] = types.NewAsset(types.Currency, code, symbol, "FX", code)
	}
	return nil
}

// AddAsset registers an asset under the given key.
func (p *Portfolio) AddAsset(key string, a *types.Asset) {
	p.Assets[key] = a
}

// AddPending schedules a transaction on its day's pending list. The day
// must fall inside the simulation range.
func (p *Portfolio) AddPending(t *types.Transaction) error {
	idx := p.Index(t.When)
	if idx < 0 {
		return fmt.Errorf("%w: transaction date %s outside simulation range %s..%s",
			types.ErrInvalidArgument, t.When, p.StartDate, p.EndDate)
	}
	p.Pending[idx] = append(p.Pending[idx], t)
	return nil
}

// PendingOn returns the pending transactions scheduled for a date.
func (p *Portfolio) PendingOn(d calendar.Date) []*types.Transaction {
	idx := p.Index(d)
	if idx < 0 {
		return nil
	}
	return p.Pending[idx]
}

// Clone returns a deep copy of the portfolio. Strategies and simulations
// operate on clones, so the input portfolio is never aliased.
func (p *Portfolio) Clone() *Portfolio {
	out := *p
	out.Assets = make(map[string]*types.Asset, len(p.Assets))
	for key, a := range p.Assets {
		out.Assets[key] = a.Clone()
	}
	out.History = append([]HistoryRow(nil), p.History...)
	out.Pending = make([][]*types.Transaction, len(p.Pending))
	for i, day := range p.Pending {
		out.Pending[i] = cloneTransactions(day, p, &out)
	}
	out.Executed = cloneTransactions(p.Executed, p, &out)
	out.Failed = cloneTransactions(p.Failed, p, &out)
	return &out
}

// cloneTransactions copies transactions, re-pointing asset references at
// the clone's assets.
func cloneTransactions(txs []*types.Transaction, from, to *Portfolio) []*types.Transaction {
	if txs == nil {
		return nil
	}
	out := make([]*types.Transaction, len(txs))
	for i, t := range txs {
		cp := *t
		for key, a := range from.Assets {
			if a == t.Asset {
				cp.Asset = to.Assets[key]
				break
			}
		}
		out[i] = &cp
	}
	return out
}
