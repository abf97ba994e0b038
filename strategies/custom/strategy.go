// Package custom replays hand-picked transactions from a CSV file,
// optionally on top of a Buy & Hold seeding.
package custom

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/calendar"
	"tradesim/internal/engine"
	"tradesim/strategies/buyhold"
	"tradesim/types"
)

// dateLayout is the dd/mm/yyyy format the transaction files use.
const dateLayout = "02/01/2006"

const manualReason = "MANUAL TX"

// entry is one parsed row of the transaction file.
type entry struct {
	when   calendar.Date
	verb   types.Verb
	symbol string
}

type Strategy struct {
	entries []entry
	seed    *buyhold.Strategy
}

// New parses a manual transaction file: CSV rows of
// `DATE(dd/mm/yyyy), VERB, SYMBOL, Full Name` after a header line.
// Construction fails on a malformed date or a verb other than BUY/SELL.
func New(r io.Reader, wishList ...string) (*Strategy, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("reading transaction file header: %w", err)
	}

	var entries []entry
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading transaction file line %d: %w", line, err)
		}
		e, err := parseEntry(record)
		if err != nil {
			return nil, fmt.Errorf("transaction file line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return &Strategy{entries: entries, seed: buyhold.New(wishList...)}, nil
}

// Load reads the strategy from a file on disk.
func Load(path string, wishList ...string) (*Strategy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transaction file: %w", err)
	}
	defer f.Close()
	s, err := New(f, wishList...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseEntry(record []string) (entry, error) {
	if len(record) < 3 {
		return entry{}, fmt.Errorf("%w: row has %d columns, want at least 3", types.ErrInvalidArgument, len(record))
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		return entry{}, fmt.Errorf("%w: date %q", types.ErrInvalidArgument, record[0])
	}
	verb := types.Verb(strings.TrimSpace(record[1]))
	switch verb {
	case types.VerbBuy, types.VerbSell:
	default:
		return entry{}, fmt.Errorf("%w: %q is not a valid verb", types.ErrInvalidArgument, record[1])
	}
	symbol := strings.TrimSpace(record[2])
	if symbol == "" {
		return entry{}, fmt.Errorf("%w: empty symbol", types.ErrInvalidArgument)
	}
	return entry{when: calendar.DateOf(t), verb: verb, symbol: symbol}, nil
}

func (s *Strategy) Name() string { return "Custom" }

// GenerateSignals optionally seeds a Buy & Hold pass and then schedules
// every file entry on its own date. An entry naming an asset absent
// from the portfolio, or dated outside the simulated range, is an
// error: a manual file is an explicit instruction, not a hint.
func (s *Strategy) GenerateSignals(p *engine.Portfolio, cfg engine.SimulationConfig) error {
	if cfg.InitialBuy {
		seedCfg := cfg
		seedCfg.SellAll = false
		if err := s.seed.GenerateSignals(p, seedCfg); err != nil {
			return err
		}
	}
	for _, e := range s.entries {
		asset := s.findAsset(p, e.symbol)
		if asset == nil {
			return fmt.Errorf("%w: transaction references unknown asset %q", types.ErrInvalidArgument, e.symbol)
		}
		tx, err := types.NewTransaction(e.verb, asset, e.when, decimal.Zero, decimal.Zero, manualReason)
		if err != nil {
			return err
		}
		if e.verb == types.VerbBuy {
			if idx := p.Index(e.when); idx >= 0 {
				tx.Score = buyhold.Score(asset.History[idx])
			}
		}
		if err := p.AddPending(tx); err != nil {
			return fmt.Errorf("scheduling %s %s on %s: %w", e.verb, e.symbol, e.when, err)
		}
	}
	if cfg.SellAll {
		for _, key := range buyhold.SortedAssetKeys(p) {
			if err := buyhold.ScheduleFinalSell(p, p.Assets[key], s.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Strategy) findAsset(p *engine.Portfolio, symbol string) *types.Asset {
	for _, asset := range p.Assets {
		if asset.Symbol == symbol {
			return asset
		}
	}
	return nil
}
