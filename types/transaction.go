package types

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"tradesim/calendar"
)

type Verb string

type State string

const (
	VerbBuy      Verb = "BUY"
	VerbSell     Verb = "SELL"
	VerbDividend Verb = "DIVIDEND"
	VerbSplit    Verb = "SPLIT"

	StatePending  State = "pending"
	StateExecuted State = "executed"
	StateFailed   State = "failed"
)

// DefaultScore is the neutral BUY priority.
const DefaultScore = 100.0

// Transaction is a trade intent scheduled for a given day. Value is the
// total consideration for BUY/SELL and the per-unit amount for DIVIDEND,
// always in the asset's native currency. State transitions are monotonic:
// pending -> executed or pending -> failed.
type Transaction struct {
	Verb     Verb
	State    State
	When     calendar.Date
	Asset    *Asset
	Quantity decimal.Decimal
	Value    decimal.Decimal
	Note     string
	Score    float64
}

// NewTransaction validates and builds a pending Transaction with the
// neutral score.
func NewTransaction(verb Verb, asset *Asset, when calendar.Date, quantity, value decimal.Decimal, note string) (*Transaction, error) {
	switch verb {
	case VerbBuy, VerbSell, VerbDividend, VerbSplit:
	default:
		return nil, fmt.Errorf("%w: %q is not a valid transaction verb", ErrInvalidArgument, verb)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: transaction requires an asset", ErrInvalidArgument)
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("%w: transaction quantity must not be negative", ErrInvalidArgument)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: transaction value must not be negative", ErrInvalidArgument)
	}
	return &Transaction{
		Verb:     verb,
		State:    StatePending,
		When:     when,
		Asset:    asset,
		Quantity: quantity,
		Value:    value,
		Note:     note,
		Score:    DefaultScore,
	}, nil
}

// MarkExecuted moves a pending transaction to executed.
func (t *Transaction) MarkExecuted() error {
	if t.State != StatePending {
		return fmt.Errorf("%w: %s -> executed", ErrInvalidState, t.State)
	}
	t.State = StateExecuted
	return nil
}

// MarkFailed moves a pending transaction to failed, appending the reason
// to its note.
func (t *Transaction) MarkFailed(reason string) error {
	if t.State != StatePending {
		return fmt.Errorf("%w: %s -> failed", ErrInvalidState, t.State)
	}
	t.State = StateFailed
	if t.Note != "" {
		t.Note += " - "
	}
	t.Note += reason
	return nil
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s : %s\t%s\t%s %s %s\tscore: %g",
		t.When, t.Verb, t.Asset.Symbol, t.Value, t.Quantity, t.State, t.Score)
}

// verbPriority orders same-day execution: corporate actions first, then
// sales freeing liquidity, then purchases.
func verbPriority(v Verb) int {
	switch v {
	case VerbSplit:
		return 0
	case VerbDividend:
		return 1
	case VerbSell:
		return 2
	default:
		return 3
	}
}

// effectiveScore clamps NaN and sub-unit scores to 1 so that the BUY
// ordering is total.
func effectiveScore(s float64) float64 {
	if math.IsNaN(s) || s < 1 {
		return 1
	}
	return s
}

// SortForExecution orders a single day's transactions in execution order:
// SPLIT, DIVIDEND, SELL, then BUY by descending score. The sort is stable,
// so ties keep insertion order. BUY scores are clamped in place so the
// ledger shows the score the ordering actually used.
func SortForExecution(txs []*Transaction) {
	for _, t := range txs {
		if t.Verb == VerbBuy {
			t.Score = effectiveScore(t.Score)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		pi, pj := verbPriority(txs[i].Verb), verbPriority(txs[j].Verb)
		if pi != pj {
			return pi < pj
		}
		if txs[i].Verb == VerbBuy {
			return txs[i].Score > txs[j].Score
		}
		return false
	})
}
