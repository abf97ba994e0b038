package types

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"tradesim/calendar"
)

func testAsset(symbol string) *Asset {
	return NewAsset(Equity, symbol+" Inc", symbol, "NYSE", "EUR")
}

func TestNewTransactionValidation(t *testing.T) {
	asset := testAsset("AAPL")
	when := calendar.MustParseDate("2020-03-02")

	tests := []struct {
		name     string
		verb     Verb
		asset    *Asset
		quantity decimal.Decimal
		value    decimal.Decimal
		wantErr  bool
	}{
		{name: "valid buy", verb: VerbBuy, asset: asset, quantity: decimal.Zero, value: decimal.Zero},
		{name: "valid dividend", verb: VerbDividend, asset: asset, quantity: decimal.Zero, value: decimal.NewFromFloat(0.42)},
		{name: "unknown verb", verb: "SHORT", asset: asset, quantity: decimal.Zero, value: decimal.Zero, wantErr: true},
		{name: "nil asset", verb: VerbBuy, quantity: decimal.Zero, value: decimal.Zero, wantErr: true},
		{name: "negative quantity", verb: VerbBuy, asset: asset, quantity: decimal.NewFromInt(-1), value: decimal.Zero, wantErr: true},
		{name: "negative value", verb: VerbSell, asset: asset, quantity: decimal.Zero, value: decimal.NewFromInt(-10), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction(tt.verb, tt.asset, when, tt.quantity, tt.value, "")
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("want ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if tx.State != StatePending {
				t.Errorf("new transaction state = %s, want pending", tx.State)
			}
			if tx.Score != DefaultScore {
				t.Errorf("new transaction score = %g, want %g", tx.Score, DefaultScore)
			}
		})
	}
}

func TestStateTransitionsAreMonotonic(t *testing.T) {
	asset := testAsset("AAPL")
	when := calendar.MustParseDate("2020-03-02")

	tx, err := NewTransaction(VerbBuy, asset, when, decimal.Zero, decimal.Zero, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.MarkExecuted(); err != nil {
		t.Fatal(err)
	}
	if err := tx.MarkFailed("too late"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("executed -> failed should be rejected, got %v", err)
	}
	if err := tx.MarkExecuted(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("executed -> executed should be rejected, got %v", err)
	}

	tx2, _ := NewTransaction(VerbSell, asset, when, decimal.Zero, decimal.Zero, "note")
	if err := tx2.MarkFailed("nothing to sell"); err != nil {
		t.Fatal(err)
	}
	if tx2.Note != "note - nothing to sell" {
		t.Errorf("note = %q", tx2.Note)
	}
	if err := tx2.MarkExecuted(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("failed -> executed should be rejected, got %v", err)
	}
}

func TestSortForExecution(t *testing.T) {
	asset := testAsset("AAPL")
	when := calendar.MustParseDate("2020-03-02")

	mk := func(verb Verb, score float64) *Transaction {
		tx, err := NewTransaction(verb, asset, when, decimal.Zero, decimal.Zero, "")
		if err != nil {
			t.Fatal(err)
		}
		tx.Score = score
		return tx
	}

	weakBuy := mk(VerbBuy, 10)
	strongBuy := mk(VerbBuy, 250)
	nanBuy := mk(VerbBuy, math.NaN())
	sell := mk(VerbSell, DefaultScore)
	dividend := mk(VerbDividend, DefaultScore)
	split := mk(VerbSplit, DefaultScore)

	txs := []*Transaction{weakBuy, sell, nanBuy, strongBuy, dividend, split}
	SortForExecution(txs)

	want := []*Transaction{split, dividend, sell, strongBuy, weakBuy, nanBuy}
	for i, tx := range want {
		if txs[i] != tx {
			t.Fatalf("position %d: got %s score %g", i, txs[i].Verb, txs[i].Score)
		}
	}
}

func TestSortForExecutionClampsBuyScores(t *testing.T) {
	asset := testAsset("AAPL")
	when := calendar.MustParseDate("2020-03-02")

	mk := func(verb Verb, score float64) *Transaction {
		tx, err := NewTransaction(verb, asset, when, decimal.Zero, decimal.Zero, "")
		if err != nil {
			t.Fatal(err)
		}
		tx.Score = score
		return tx
	}

	nanBuy := mk(VerbBuy, math.NaN())
	subUnitBuy := mk(VerbBuy, 0.4)
	strongBuy := mk(VerbBuy, 42)
	sell := mk(VerbSell, math.NaN())

	SortForExecution([]*Transaction{nanBuy, subUnitBuy, strongBuy, sell})

	if nanBuy.Score != 1 {
		t.Errorf("NaN buy score = %g, want 1", nanBuy.Score)
	}
	if subUnitBuy.Score != 1 {
		t.Errorf("sub-unit buy score = %g, want 1", subUnitBuy.Score)
	}
	if strongBuy.Score != 42 {
		t.Errorf("strong buy score = %g, want 42", strongBuy.Score)
	}
	if !math.IsNaN(sell.Score) {
		t.Errorf("sell score = %g, want NaN left alone", sell.Score)
	}
}

func TestSortForExecutionBuyTiesKeepInsertionOrder(t *testing.T) {
	asset := testAsset("AAPL")
	when := calendar.MustParseDate("2020-03-02")

	var txs []*Transaction
	for i := 0; i < 4; i++ {
		tx, err := NewTransaction(VerbBuy, asset, when, decimal.Zero, decimal.Zero, "")
		if err != nil {
			t.Fatal(err)
		}
		tx.Note = string(rune('a' + i))
		txs = append(txs, tx)
	}
	SortForExecution(txs)
	for i := 0; i < 4; i++ {
		if txs[i].Note != string(rune('a'+i)) {
			t.Fatalf("tie order broken at %d: %q", i, txs[i].Note)
		}
	}
}
