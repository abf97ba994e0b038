package types

import (
	"math"

	"github.com/shopspring/decimal"

	"tradesim/calendar"
)

// Quote is one raw daily quotation as retrieved from the provider,
// possibly sparse and in the asset's native currency. Rolling statistics
// are filled in by the stats pass before normalization.
type Quote struct {
	Date  calendar.Date
	Open  decimal.Decimal
	Close decimal.Decimal

	SMAShort float64
	SMALong  float64
	StdShort float64
	StdLong  float64
}

// DailyRecord is one row of an asset's dense simulation series: the
// quotation carried onto a business day plus the simulation-mutable
// position fields. AverageBuyPrice and NetWorth are in the portfolio's
// default currency.
type DailyRecord struct {
	Open  decimal.Decimal
	Close decimal.Decimal

	SMAShort float64
	SMALong  float64
	StdShort float64
	StdLong  float64

	OwnedAmount     decimal.Decimal
	AverageBuyPrice decimal.Decimal
	NetWorth        decimal.Decimal
	TotTaxes        decimal.Decimal
	TotCommissions  decimal.Decimal
}

// Asset is a tradable instrument: static identity plus its quote series.
// Quotes holds the raw retrieved series; History is the dense
// business-day series produced by the normalizer, indexed by business-day
// offset from the portfolio start date.
type Asset struct {
	Class    *AssetClass
	Symbol   string
	Name     string
	Market   string
	Currency string

	Quotes  []Quote
	History []DailyRecord
}

// NewAsset builds an Asset with an empty history.
func NewAsset(class *AssetClass, name, symbol, market, currency string) *Asset {
	return &Asset{
		Class:    class,
		Name:     name,
		Symbol:   symbol,
		Market:   market,
		Currency: currency,
	}
}

func (a *Asset) String() string { return a.Symbol + "\t" + a.Name + "\t" + a.Class.String() }

// Clone returns a deep copy of the asset. The asset class stays shared:
// classes are immutable.
func (a *Asset) Clone() *Asset {
	out := *a
	out.Quotes = append([]Quote(nil), a.Quotes...)
	out.History = append([]DailyRecord(nil), a.History...)
	return &out
}

// ZeroRecord returns a daily record with zero prices and undefined
// statistics, used as the forward-fill seed when a series starts inside
// a data gap.
func ZeroRecord() DailyRecord {
	return DailyRecord{
		SMAShort: math.NaN(),
		SMALong:  math.NaN(),
		StdShort: math.NaN(),
		StdLong:  math.NaN(),
	}
}
