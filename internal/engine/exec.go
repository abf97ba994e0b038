package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/types"
)

// execTrade applies one pending transaction to the portfolio state of
// day idx. Business-level failures (liquidity shortage, empty position,
// unsupported verb) mark the transaction failed and route it to the
// failed ledger; the returned error is reserved for invariant violations
// that must abort the run.
func (p *Portfolio) execTrade(t *types.Transaction, idx int, budget decimal.Decimal) error {
	if t.State != types.StatePending {
		return fmt.Errorf("%w: executing %s transaction %s", types.ErrInvalidState, t.State, t)
	}
	asset := t.Asset
	fx := p.fxRate(asset.Currency, idx, true)
	rec := &asset.History[idx]
	row := &p.History[idx]

	p.log.Debug().Stringer("tx", t).Str("fx", fx.String()).Msg("executing transaction")

	switch t.Verb {
	case types.VerbBuy:
		price := rec.Open.Mul(fx)
		if !price.IsPositive() {
			return fmt.Errorf("buy %s on %s: no positive opening price", asset.Symbol, row.Date)
		}
		quantity := budget.Div(price).Floor()
		cost := quantity.Mul(price)
		commission := cost.Mul(asset.Class.BuyCommission)
		if quantity.IsPositive() && row.Liquidity.GreaterThanOrEqual(cost.Add(commission)) {
			row.Liquidity = row.Liquidity.Sub(cost.Add(commission))
			row.TotalCommissions = row.TotalCommissions.Add(commission)
			// Weighted average of the existing holding and the new lot.
			rec.AverageBuyPrice = rec.OwnedAmount.Mul(rec.AverageBuyPrice).Add(cost).
				Div(rec.OwnedAmount.Add(quantity))
			rec.OwnedAmount = rec.OwnedAmount.Add(quantity)
			t.Quantity = quantity
			t.Value = cost
			return p.settleExecuted(t)
		}
		t.Quantity = quantity
		return p.settleFailed(t, fmt.Sprintf("not enough liquidity (available: %s)", row.Liquidity))

	case types.VerbSell:
		if !rec.OwnedAmount.IsPositive() {
			return p.settleFailed(t, "nothing to sell")
		}
		quantity := rec.OwnedAmount
		proceeds := quantity.Mul(rec.Open).Mul(fx)
		commission := proceeds.Mul(asset.Class.BuyCommission)
		// Losses are not floored: a negative gain reduces the tax
		// charge, a first-order stand-in for tax-loss carryforward.
		tax := proceeds.Sub(quantity.Mul(rec.AverageBuyPrice)).Mul(asset.Class.TaxRate)
		rec.OwnedAmount = decimal.Zero
		row.Liquidity = row.Liquidity.Add(proceeds.Sub(commission).Sub(tax))
		row.TotalCommissions = row.TotalCommissions.Add(commission)
		row.TotalTaxes = row.TotalTaxes.Add(tax)
		t.Quantity = quantity
		t.Value = proceeds
		return p.settleExecuted(t)

	case types.VerbDividend:
		gross := rec.OwnedAmount.Mul(t.Value).Mul(fx)
		tax := gross.Mul(asset.Class.TaxRate)
		net := gross.Sub(tax)
		row.Liquidity = row.Liquidity.Add(net)
		row.TotalTaxes = row.TotalTaxes.Add(tax)
		row.TotalDividends = row.TotalDividends.Add(net)
		// Quantity records the holding the dividend applied to.
		t.Quantity = rec.OwnedAmount
		return p.settleExecuted(t)

	default:
		return p.settleFailed(t, fmt.Sprintf("no instructions for verb %s", t.Verb))
	}
}

func (p *Portfolio) settleExecuted(t *types.Transaction) error {
	if err := t.MarkExecuted(); err != nil {
		return err
	}
	p.log.Info().Stringer("tx", t).Msg("transaction executed")
	p.Executed = append(p.Executed, t)
	return nil
}

func (p *Portfolio) settleFailed(t *types.Transaction, reason string) error {
	if err := t.MarkFailed(reason); err != nil {
		return err
	}
	p.log.Debug().Stringer("tx", t).Msg("transaction failed")
	p.Failed = append(p.Failed, t)
	return nil
}
