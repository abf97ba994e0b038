package engine

import (
	"context"

	"tradesim/calendar"
	"tradesim/types"
)

// QuoteProvider supplies historical daily quotations and corporate
// actions for a symbol. Implementations must yield both series ordered
// by date; the quote series may be sparse.
type QuoteProvider interface {
	Quotes(ctx context.Context, symbol string, start, end calendar.Date) ([]types.Quote, error)
	Actions(ctx context.Context, symbol string, start, end calendar.Date) ([]types.CorporateAction, error)
}

// Strategy populates a portfolio's pending-transaction schedule.
// Implementations receive a private clone of the input portfolio and must
// only schedule transactions for business days strictly later than the
// last day of data the signal was derived from.
type Strategy interface {
	Name() string
	GenerateSignals(p *Portfolio, cfg SimulationConfig) error
}
