package types

import (
	"github.com/shopspring/decimal"

	"tradesim/calendar"
)

// CorporateAction is one dividend/split event yielded by the quote
// provider. Kind maps directly onto a transaction verb.
type CorporateAction struct {
	Date  calendar.Date
	Kind  Verb
	Value decimal.Decimal
}

// Transaction converts the action into a pending transaction on the
// given asset.
func (a CorporateAction) Transaction(asset *Asset) (*Transaction, error) {
	return NewTransaction(a.Kind, asset, a.Date, decimal.Zero, a.Value, "")
}
