package engine

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// fxRate returns the conversion factor from an asset currency into the
// portfolio's default currency on the given day, taken from the
// currency pseudo-asset's quotation. GBP quotes run in pence and are
// divided by 100. Open selects the day's opening rate (used for trade
// execution); otherwise the closing rate is used (net-value accounting).
// A currency without a registered pseudo-asset converts at par.
func (p *Portfolio) fxRate(currency string, idx int, open bool) decimal.Decimal {
	if currency == p.DefaultCurrency {
		return one
	}
	fx, ok := p.Assets[currency]
	if !ok {
		return one
	}
	rec := fx.History[idx]
	rate := rec.Close
	if open {
		rate = rec.Open
	}
	if currency == "GBP" {
		rate = rate.Div(hundred)
	}
	return rate
}
