package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesim/calendar"
	"tradesim/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func eqDec(t *testing.T, name, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func mustPortfolio(t *testing.T, start, end string, capital int64) *Portfolio {
	t.Helper()
	p, err := NewPortfolio(
		calendar.MustParseDate(start),
		calendar.MustParseDate(end),
		decimal.NewFromInt(capital),
		"test portfolio",
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// flatAsset registers an asset whose dense history quotes the same open
// and close on every business day of the range.
func flatAsset(t *testing.T, p *Portfolio, class *types.AssetClass, symbol, currency string, open, close float64) *types.Asset {
	t.Helper()
	a := types.NewAsset(class, symbol+" Test", symbol, "TEST", currency)
	a.History = make([]types.DailyRecord, p.Days())
	for i := range a.History {
		a.History[i] = types.DailyRecord{
			Open:  decimal.NewFromFloat(open),
			Close: decimal.NewFromFloat(close),
		}
	}
	p.AddAsset(symbol, a)
	return a
}

// fxFlat registers a currency pseudo-asset quoting a flat conversion
// rate. GBP rates are given in pence, as delivered by the vendor.
func fxFlat(t *testing.T, p *Portfolio, code string, rate float64) *types.Asset {
	t.Helper()
	a := types.NewAsset(types.Currency, code, code+"EUR=X", "FX", code)
	a.History = make([]types.DailyRecord, p.Days())
	for i := range a.History {
		a.History[i] = types.DailyRecord{
			Open:  decimal.NewFromFloat(rate),
			Close: decimal.NewFromFloat(rate),
		}
	}
	p.AddAsset(code, a)
	return a
}

func schedule(t *testing.T, p *Portfolio, verb types.Verb, a *types.Asset, date string, value float64) *types.Transaction {
	t.Helper()
	tx, err := types.NewTransaction(verb, a, calendar.MustParseDate(date), decimal.Zero, decimal.NewFromFloat(value), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddPending(tx); err != nil {
		t.Fatal(err)
	}
	return tx
}
