package engine

import (
	"github.com/shopspring/decimal"
)

// computeNetValue writes the day's portfolio net value: liquidity plus
// every held position valued at the closing price in the default
// currency, adjusted by the embedded deferred-tax liability
// (the "tax backpack"): unrealized gains are discounted by the future
// tax charge and unrealized losses are credited with the future tax
// relief. Per-asset NetWorth is updated as a side effect.
func (p *Portfolio) computeNetValue(idx int) {
	total := decimal.Zero
	for _, asset := range p.Assets {
		rec := &asset.History[idx]
		if !rec.OwnedAmount.IsPositive() {
			continue
		}
		closePrice := rec.Close.Mul(p.fxRate(asset.Currency, idx, false))
		adjustment := asset.Class.TaxRate.Mul(rec.AverageBuyPrice.Sub(closePrice))
		rec.NetWorth = rec.OwnedAmount.Mul(closePrice.Add(adjustment))
		total = total.Add(rec.NetWorth)
	}
	row := &p.History[idx]
	row.NetValue = row.Liquidity.Add(total)
}
