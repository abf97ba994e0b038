package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"tradesim/types"
)

// Simulation walks the business-day calendar over a portfolio, carrying
// state from each day into the next and executing that day's pending
// transactions in priority order. Processing is strictly sequential:
// every day starts from the previous day's liquidity and positions.
type Simulation struct {
	port     *Portfolio
	cfg      SimulationConfig
	budget   decimal.Decimal
	progress bool
	log      zerolog.Logger
}

// NewSimulation validates the configuration and prepares a run over the
// given portfolio. The simulation takes ownership of the portfolio.
func NewSimulation(p *Portfolio, cfg SimulationConfig, log zerolog.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulation{
		port: p,
		cfg:  cfg,
		log:  log.With().Str("component", "simulation").Logger(),
	}, nil
}

// WithProgress enables the terminal progress bar.
func (s *Simulation) WithProgress() *Simulation {
	s.progress = true
	return s
}

// Run executes the simulation from the day after the start date through
// the end date. Day 0 never trades: no signal can exist without at least
// one day of history. The portfolio is returned even on error so that
// whatever was achieved before a fatal abort stays reportable.
func (s *Simulation) Run() (*Portfolio, error) {
	p := s.port
	for key, asset := range p.Assets {
		if len(asset.History) != p.Days() {
			return p, fmt.Errorf("asset %s history has %d rows, want %d (was NormalizeHistories run?)",
				key, len(asset.History), p.Days())
		}
	}

	s.budget = p.InitialCapital.Div(s.cfg.MaxOrders)
	s.log.Info().
		Str("portfolio", p.Description).
		Stringer("start", p.StartDate).
		Stringer("end", p.EndDate).
		Str("order_budget", s.budget.String()).
		Msg("starting trading simulation")

	var bar *progressbar.ProgressBar
	if s.progress {
		bar = initProgressBar(p.Days() - 1)
	}

	for i := 1; i < p.Days(); i++ {
		if err := s.processDay(i); err != nil {
			return p, fmt.Errorf("trading day %s: %w", p.History[i].Date, err)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return p, nil
}

// processDay runs the per-day state machine: propagate yesterday's
// state, execute the day's transactions in priority order, recompute net
// value, then resize the per-order budget against it.
func (s *Simulation) processDay(i int) error {
	p := s.port

	prev := p.History[i-1]
	today := &p.History[i]
	today.Liquidity = prev.Liquidity
	today.NetValue = prev.NetValue
	today.TotalCommissions = prev.TotalCommissions
	today.TotalDividends = prev.TotalDividends
	today.TotalTaxes = prev.TotalTaxes

	for _, asset := range p.Assets {
		asset.History[i].OwnedAmount = asset.History[i-1].OwnedAmount
		asset.History[i].AverageBuyPrice = asset.History[i-1].AverageBuyPrice
	}

	txs := p.Pending[i]
	types.SortForExecution(txs)
	for _, t := range txs {
		if err := p.execTrade(t, i, s.budget); err != nil {
			return err
		}
	}

	p.computeNetValue(i)
	s.budget = today.NetValue.Div(s.cfg.MaxOrders)
	return nil
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Simulating trading days..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
