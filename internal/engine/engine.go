package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tradesim/types"
)

// Engine wires quote retrieval, statistic precomputation, history
// normalization, signal generation and the trading simulation into one
// run. Retrieval and precomputation are parallel across assets; the
// simulation itself is sequential by construction.
type Engine struct {
	quotes   QuoteProvider
	progress bool
	log      zerolog.Logger
}

// NewEngine builds an engine around a quote provider.
func NewEngine(quotes QuoteProvider, log zerolog.Logger) *Engine {
	return &Engine{
		quotes: quotes,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// WithProgress enables the simulation progress bar.
func (e *Engine) WithProgress() *Engine {
	e.progress = true
	return e
}

// Run executes a full backtest: quotes are loaded into the input
// portfolio, then the strategy receives a private clone to populate with
// intents, and the simulation runs over that clone. The input portfolio
// is never mutated past the data-loading phase, so several strategies
// can be compared against the same loaded portfolio.
func (e *Engine) Run(ctx context.Context, p *Portfolio, strat Strategy, cfg SimulationConfig) (*Portfolio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.LoadQuotes(ctx, p); err != nil {
		return nil, fmt.Errorf("loading quotes: %w", err)
	}
	if err := e.Prepare(p, cfg); err != nil {
		return nil, err
	}
	return e.Simulate(p, strat, cfg)
}

// Prepare computes rolling statistics and normalizes every asset history
// onto the dense business-day calendar. Statistics run first so they
// reflect real quotations rather than forward-filled copies.
func (e *Engine) Prepare(p *Portfolio, cfg SimulationConfig) error {
	if err := p.ComputeStats(cfg.DaysShort, cfg.DaysLong); err != nil {
		return fmt.Errorf("computing rolling statistics: %w", err)
	}
	if err := p.NormalizeHistories(); err != nil {
		return fmt.Errorf("normalizing histories: %w", err)
	}
	return nil
}

// Simulate clones the prepared portfolio, lets the strategy schedule its
// intents on the clone and runs the trading simulation over it.
func (e *Engine) Simulate(p *Portfolio, strat Strategy, cfg SimulationConfig) (*Portfolio, error) {
	work := p.Clone()
	work.Description = strat.Name()
	if err := strat.GenerateSignals(work, cfg); err != nil {
		return nil, fmt.Errorf("strategy %q: %w", strat.Name(), err)
	}
	sim, err := NewSimulation(work, cfg, e.log)
	if err != nil {
		return nil, err
	}
	if e.progress {
		sim.WithProgress()
	}
	return sim.Run()
}

// LoadQuotes retrieves the raw quote series for every asset and, for
// dividend-eligible classes, schedules the corporate actions as pending
// transactions. Retrieval is parallel; each goroutine owns one asset's
// series, and action scheduling is serialized afterward.
func (e *Engine) LoadQuotes(ctx context.Context, p *Portfolio) error {
	type pendingAction struct {
		key    string
		action types.CorporateAction
	}

	var mu sync.Mutex
	var actions []pendingAction

	var g errgroup.Group
	for key, asset := range p.Assets {
		g.Go(func() error {
			quotes, err := e.quotes.Quotes(ctx, asset.Symbol, p.StartDate, p.EndDate)
			if err != nil {
				return fmt.Errorf("quotes for %s: %w", asset.Symbol, err)
			}
			asset.Quotes = quotes
			e.log.Debug().Str("symbol", asset.Symbol).Int("rows", len(quotes)).Msg("retrieved quotations")

			if !asset.Class.HasDividends() {
				return nil
			}
			acts, err := e.quotes.Actions(ctx, asset.Symbol, p.StartDate, p.EndDate)
			if err != nil {
				return fmt.Errorf("actions for %s: %w", asset.Symbol, err)
			}
			mu.Lock()
			for _, a := range acts {
				actions = append(actions, pendingAction{key: key, action: a})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, pa := range actions {
		tx, err := pa.action.Transaction(p.Assets[pa.key])
		if err != nil {
			return err
		}
		if err := p.AddPending(tx); err != nil {
			// Vendors occasionally report actions just outside the
			// requested range; they cannot execute anyway.
			e.log.Warn().Err(err).Str("symbol", pa.key).Msg("skipping out-of-range corporate action")
		}
	}
	return nil
}
