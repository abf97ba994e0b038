package engine

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"tradesim/types"
)

func TestExecTradeBuy(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, dec("1000")); err != nil {
		t.Fatal(err)
	}
	if tx.State != types.StateExecuted {
		t.Fatalf("state = %s, want executed", tx.State)
	}
	eqDec(t, "quantity", "10", tx.Quantity)
	eqDec(t, "value", "1000", tx.Value)
	eqDec(t, "owned", "10", a.History[1].OwnedAmount)
	eqDec(t, "average buy price", "100", a.History[1].AverageBuyPrice)
	eqDec(t, "liquidity", "995", p.History[1].Liquidity)
	eqDec(t, "commissions", "5", p.History[1].TotalCommissions)
	if len(p.Executed) != 1 {
		t.Errorf("executed ledger has %d entries, want 1", len(p.Executed))
	}
}

func TestExecTradeBuyFloorsQuantity(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, dec("1050")); err != nil {
		t.Fatal(err)
	}
	eqDec(t, "quantity", "10", tx.Quantity)
	eqDec(t, "value", "1000", tx.Value)
}

func TestExecTradeBuyInsufficientLiquidity(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 500)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, dec("1000")); err != nil {
		t.Fatal(err)
	}
	if tx.State != types.StateFailed {
		t.Fatalf("state = %s, want failed", tx.State)
	}
	if !strings.Contains(tx.Note, "not enough liquidity") {
		t.Errorf("note = %q, want liquidity failure reason", tx.Note)
	}
	eqDec(t, "liquidity", "500", p.History[1].Liquidity)
	eqDec(t, "owned", "0", a.History[1].OwnedAmount)
	if len(p.Failed) != 1 {
		t.Errorf("failed ledger has %d entries, want 1", len(p.Failed))
	}
}

func TestExecTradeBuyNoPositivePrice(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 0, 0)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	err := p.execTrade(tx, 1, dec("1000"))
	if err == nil || !strings.Contains(err.Error(), "no positive opening price") {
		t.Fatalf("err = %v, want fatal pricing error", err)
	}
}

func TestExecTradeBuyWeightedAverage(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-10", 5000)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)

	first := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)
	if err := p.execTrade(first, 1, dec("1000")); err != nil {
		t.Fatal(err)
	}

	// Carry the position into the next day at a higher opening price.
	a.History[2].OwnedAmount = a.History[1].OwnedAmount
	a.History[2].AverageBuyPrice = a.History[1].AverageBuyPrice
	a.History[2].Open = dec("110")
	p.History[2].Liquidity = p.History[1].Liquidity

	second := schedule(t, p, types.VerbBuy, a, "2020-03-04", 0)
	if err := p.execTrade(second, 2, dec("1100")); err != nil {
		t.Fatal(err)
	}
	eqDec(t, "quantity", "10", second.Quantity)
	eqDec(t, "owned", "20", a.History[2].OwnedAmount)
	eqDec(t, "average buy price", "105", a.History[2].AverageBuyPrice)
}

func TestExecTradeSellTaxesGain(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 0)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	a.History[1].OwnedAmount = dec("10")
	a.History[1].AverageBuyPrice = dec("80")
	tx := schedule(t, p, types.VerbSell, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	// proceeds 1000, commission 5, tax 0.26 * (1000 - 800) = 52
	eqDec(t, "quantity", "10", tx.Quantity)
	eqDec(t, "value", "1000", tx.Value)
	eqDec(t, "owned", "0", a.History[1].OwnedAmount)
	eqDec(t, "liquidity", "943", p.History[1].Liquidity)
	eqDec(t, "taxes", "52", p.History[1].TotalTaxes)
	eqDec(t, "commissions", "5", p.History[1].TotalCommissions)
	// The average buy price survives the liquidation on purpose.
	eqDec(t, "average buy price", "80", a.History[1].AverageBuyPrice)
}

func TestExecTradeSellCreditsLoss(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 0)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	a.History[1].OwnedAmount = dec("10")
	a.History[1].AverageBuyPrice = dec("120")
	tx := schedule(t, p, types.VerbSell, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	// proceeds 1000, commission 5, tax 0.26 * (1000 - 1200) = -52
	eqDec(t, "liquidity", "1047", p.History[1].Liquidity)
	eqDec(t, "taxes", "-52", p.History[1].TotalTaxes)
}

func TestExecTradeSellNothingToSell(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 100)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbSell, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	if tx.State != types.StateFailed || !strings.Contains(tx.Note, "nothing to sell") {
		t.Fatalf("state = %s note = %q, want failed with reason", tx.State, tx.Note)
	}
	eqDec(t, "liquidity", "100", p.History[1].Liquidity)
}

func TestExecTradeDividend(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 100)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	a.History[1].OwnedAmount = dec("4")
	tx := schedule(t, p, types.VerbDividend, a, "2020-03-03", 2.5)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	// gross 10, tax 2.6, net 7.4
	eqDec(t, "quantity", "4", tx.Quantity)
	eqDec(t, "liquidity", "107.4", p.History[1].Liquidity)
	eqDec(t, "dividends", "7.4", p.History[1].TotalDividends)
	eqDec(t, "taxes", "2.6", p.History[1].TotalTaxes)
}

func TestExecTradeDividendOnEmptyPosition(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 100)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbDividend, a, "2020-03-03", 2.5)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	if tx.State != types.StateExecuted {
		t.Fatalf("state = %s, want executed", tx.State)
	}
	eqDec(t, "quantity", "0", tx.Quantity)
	eqDec(t, "liquidity", "100", p.History[1].Liquidity)
}

func TestExecTradeSplitIsUnsupported(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 100)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbSplit, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
		t.Fatal(err)
	}
	if tx.State != types.StateFailed || !strings.Contains(tx.Note, "no instructions") {
		t.Fatalf("state = %s note = %q, want failed split", tx.State, tx.Note)
	}
}

func TestExecTradeRejectsSettledTransaction(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	a := flatAsset(t, p, types.Equity, "AAPL", "EUR", 100, 100)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)
	if err := tx.MarkExecuted(); err != nil {
		t.Fatal(err)
	}

	if err := p.execTrade(tx, 1, dec("1000")); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestExecTradeBuyConvertsCurrency(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	fxFlat(t, p, "USD", 2)
	a := flatAsset(t, p, types.Equity, "MSFT", "USD", 50, 50)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, dec("1000")); err != nil {
		t.Fatal(err)
	}
	// effective price 50 * 2 = 100 EUR
	eqDec(t, "quantity", "10", tx.Quantity)
	eqDec(t, "value", "1000", tx.Value)
	eqDec(t, "liquidity", "995", p.History[1].Liquidity)
}

func TestExecTradeBuyConvertsPence(t *testing.T) {
	p := mustPortfolio(t, "2020-03-02", "2020-03-06", 2000)
	fxFlat(t, p, "GBP", 120) // 120 pence = 1.20 EUR per pound
	a := flatAsset(t, p, types.Equity, "RIO", "GBP", 100, 100)
	tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)

	if err := p.execTrade(tx, 1, dec("1200")); err != nil {
		t.Fatal(err)
	}
	// effective price 100 * 1.20 = 120 EUR
	eqDec(t, "quantity", "10", tx.Quantity)
	eqDec(t, "value", "1200", tx.Value)
	eqDec(t, "commissions", "6", p.History[1].TotalCommissions)
}

// Conservation: every settlement moves liquidity by exactly the trade
// value plus frictions, for arbitrary price, quantity, and rate combos.
func TestExecTradeConservesLiquidity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randRate := func(limit int64) decimal.Decimal {
		return decimal.NewFromInt(rng.Int63n(limit)).Div(dec("10000"))
	}
	randPrice := func() float64 { return float64(rng.Int63n(49900)+100) / 100 }
	randClass := func() *types.AssetClass {
		c, err := types.NewAssetClass(types.CategoryEquity, randRate(200), decimal.Zero, randRate(5000))
		if err != nil {
			t.Fatal(err)
		}
		return c
	}

	t.Run("buy", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			p := mustPortfolio(t, "2020-03-02", "2020-03-06", rng.Int63n(100000)+1)
			a := flatAsset(t, p, randClass(), "RND", "EUR", randPrice(), 100)
			budget := decimal.NewFromInt(rng.Int63n(100000) + 1)
			before := p.History[1].Liquidity
			tx := schedule(t, p, types.VerbBuy, a, "2020-03-03", 0)
			if err := p.execTrade(tx, 1, budget); err != nil {
				t.Fatal(err)
			}
			price := a.History[1].Open
			quantity := budget.Div(price).Floor()
			cost := quantity.Mul(price)
			commission := cost.Mul(a.Class.BuyCommission)
			want := before
			if tx.State == types.StateExecuted {
				want = before.Sub(cost).Sub(commission)
			}
			if !p.History[1].Liquidity.Equal(want) {
				t.Fatalf("iteration %d: liquidity = %s, want %s (budget %s, price %s)",
					i, p.History[1].Liquidity, want, budget, price)
			}
		}
	})

	t.Run("sell", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			p := mustPortfolio(t, "2020-03-02", "2020-03-06", 1000)
			a := flatAsset(t, p, randClass(), "RND", "EUR", randPrice(), 100)
			owned := decimal.NewFromInt(rng.Int63n(100) + 1)
			avg := decimal.NewFromFloat(randPrice())
			a.History[1].OwnedAmount = owned
			a.History[1].AverageBuyPrice = avg
			before := p.History[1].Liquidity
			open := a.History[1].Open
			tx := schedule(t, p, types.VerbSell, a, "2020-03-03", 0)
			if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
				t.Fatal(err)
			}
			proceeds := owned.Mul(open)
			commission := proceeds.Mul(a.Class.BuyCommission)
			tax := proceeds.Sub(owned.Mul(avg)).Mul(a.Class.TaxRate)
			want := before.Add(proceeds.Sub(commission).Sub(tax))
			if !p.History[1].Liquidity.Equal(want) {
				t.Fatalf("iteration %d: liquidity = %s, want %s (owned %s, avg %s, open %s)",
					i, p.History[1].Liquidity, want, owned, avg, open)
			}
		}
	})

	t.Run("dividend", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			p := mustPortfolio(t, "2020-03-02", "2020-03-06", 1000)
			a := flatAsset(t, p, randClass(), "RND", "EUR", randPrice(), 100)
			owned := decimal.NewFromInt(rng.Int63n(100))
			a.History[1].OwnedAmount = owned
			before := p.History[1].Liquidity
			tx := schedule(t, p, types.VerbDividend, a, "2020-03-03", float64(rng.Int63n(500)+1)/100)
			value := tx.Value
			if err := p.execTrade(tx, 1, decimal.Zero); err != nil {
				t.Fatal(err)
			}
			gross := owned.Mul(value)
			want := before.Add(gross.Sub(gross.Mul(a.Class.TaxRate)))
			if !p.History[1].Liquidity.Equal(want) {
				t.Fatalf("iteration %d: liquidity = %s, want %s (owned %s, value %s)",
					i, p.History[1].Liquidity, want, owned, value)
			}
		}
	})
}
