package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"tradesim/calendar"
	"tradesim/internal/engine"
	"tradesim/types"
)

// snapshotVersion guards against loading payloads written by an
// incompatible layout.
const snapshotVersion = 1

type snapshotFile struct {
	Version        int                     `msgpack:"version"`
	Description    string                  `msgpack:"description"`
	Start          string                  `msgpack:"start"`
	End            string                  `msgpack:"end"`
	InitialCapital string                  `msgpack:"initial_capital"`
	DaysShort      int                     `msgpack:"days_short"`
	DaysLong       int                     `msgpack:"days_long"`
	Assets         map[string]assetDTO     `msgpack:"assets"`
	Pending        []pendingTransactionDTO `msgpack:"pending"`
}

type assetDTO struct {
	Category string      `msgpack:"category"`
	Name     string      `msgpack:"name"`
	Symbol   string      `msgpack:"symbol"`
	Market   string      `msgpack:"market"`
	Currency string      `msgpack:"currency"`
	History  []recordDTO `msgpack:"history"`
}

type recordDTO struct {
	Open     string  `msgpack:"open"`
	Close    string  `msgpack:"close"`
	SMAShort float64 `msgpack:"sma_short"`
	SMALong  float64 `msgpack:"sma_long"`
	StdShort float64 `msgpack:"std_short"`
	StdLong  float64 `msgpack:"std_long"`
}

type pendingTransactionDTO struct {
	AssetKey string  `msgpack:"asset_key"`
	Verb     string  `msgpack:"verb"`
	Date     string  `msgpack:"date"`
	Value    string  `msgpack:"value"`
	Score    float64 `msgpack:"score"`
}

// SaveSnapshot persists a prepared portfolio (quotes loaded, statistics
// computed, histories normalized) so later runs can skip retrieval and
// preparation entirely. Position and accounting columns are not saved:
// a snapshot always restores to the pre-simulation state.
func SaveSnapshot(path string, p *engine.Portfolio) error {
	file := snapshotFile{
		Version:        snapshotVersion,
		Description:    p.Description,
		Start:          p.StartDate.String(),
		End:            p.EndDate.String(),
		InitialCapital: p.InitialCapital.String(),
		DaysShort:      p.DaysShort,
		DaysLong:       p.DaysLong,
		Assets:         make(map[string]assetDTO, len(p.Assets)),
	}
	for key, a := range p.Assets {
		dto := assetDTO{
			Category: string(a.Class.Category),
			Name:     a.Name,
			Symbol:   a.Symbol,
			Market:   a.Market,
			Currency: a.Currency,
			History:  make([]recordDTO, len(a.History)),
		}
		for i, rec := range a.History {
			dto.History[i] = recordDTO{
				Open:     rec.Open.String(),
				Close:    rec.Close.String(),
				SMAShort: rec.SMAShort,
				SMALong:  rec.SMALong,
				StdShort: rec.StdShort,
				StdLong:  rec.StdLong,
			}
		}
		file.Assets[key] = dto
	}
	for _, day := range p.Pending {
		for _, tx := range day {
			key, err := assetKey(p, tx.Asset)
			if err != nil {
				return err
			}
			file.Pending = append(file.Pending, pendingTransactionDTO{
				AssetKey: key,
				Verb:     string(tx.Verb),
				Date:     tx.When.String(),
				Value:    tx.Value.String(),
				Score:    tx.Score,
			})
		}
	}

	payload, err := msgpack.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// SnapshotPath derives the snapshot file name for a simulation range, so
// runs over different ranges never share a blob.
func SnapshotPath(dir string, start, end calendar.Date) string {
	return filepath.Join(dir, fmt.Sprintf("snapshot-%s-%s.msgpack", start, end))
}

// LoadSnapshotFor restores the snapshot covering exactly the given range.
// A blob whose decoded dates disagree with its file name (renamed or
// copied between ranges) is rejected rather than silently simulated.
func LoadSnapshotFor(dir string, start, end calendar.Date, log zerolog.Logger) (*engine.Portfolio, error) {
	path := SnapshotPath(dir, start, end)
	p, err := LoadSnapshot(path, log)
	if err != nil {
		return nil, err
	}
	if !p.StartDate.Equal(start) || !p.EndDate.Equal(end) {
		return nil, fmt.Errorf("snapshot %s covers %s..%s, want %s..%s",
			path, p.StartDate, p.EndDate, start, end)
	}
	return p, nil
}

// LoadSnapshot rebuilds a prepared portfolio from a snapshot file.
func LoadSnapshot(path string, log zerolog.Logger) (*engine.Portfolio, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	var file snapshotFile
	if err := msgpack.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if file.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot %s: version %d, want %d", path, file.Version, snapshotVersion)
	}

	start, err := calendar.ParseDate(file.Start)
	if err != nil {
		return nil, fmt.Errorf("snapshot start date: %w", err)
	}
	end, err := calendar.ParseDate(file.End)
	if err != nil {
		return nil, fmt.Errorf("snapshot end date: %w", err)
	}
	capital, err := decimalFromString(file.InitialCapital)
	if err != nil {
		return nil, err
	}

	p, err := engine.NewPortfolio(start, end, capital, file.Description, log)
	if err != nil {
		return nil, err
	}
	p.DaysShort = file.DaysShort
	p.DaysLong = file.DaysLong

	for key, dto := range file.Assets {
		class, err := classForCategory(dto.Category)
		if err != nil {
			return nil, fmt.Errorf("snapshot asset %s: %w", key, err)
		}
		a := types.NewAsset(class, dto.Name, dto.Symbol, dto.Market, dto.Currency)
		a.History = make([]types.DailyRecord, len(dto.History))
		for i, rec := range dto.History {
			open, err := decimalFromString(rec.Open)
			if err != nil {
				return nil, err
			}
			close, err := decimalFromString(rec.Close)
			if err != nil {
				return nil, err
			}
			a.History[i] = types.DailyRecord{
				Open:     open,
				Close:    close,
				SMAShort: rec.SMAShort,
				SMALong:  rec.SMALong,
				StdShort: rec.StdShort,
				StdLong:  rec.StdLong,
			}
		}
		p.AddAsset(key, a)
	}

	for _, dto := range file.Pending {
		a, ok := p.Assets[dto.AssetKey]
		if !ok {
			return nil, fmt.Errorf("snapshot transaction references unknown asset %q", dto.AssetKey)
		}
		when, err := calendar.ParseDate(dto.Date)
		if err != nil {
			return nil, fmt.Errorf("snapshot transaction date: %w", err)
		}
		value, err := decimalFromString(dto.Value)
		if err != nil {
			return nil, err
		}
		tx, err := types.NewTransaction(types.Verb(dto.Verb), a, when, decimal.Zero, value, "")
		if err != nil {
			return nil, err
		}
		tx.Score = dto.Score
		if err := p.AddPending(tx); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func assetKey(p *engine.Portfolio, a *types.Asset) (string, error) {
	for key, candidate := range p.Assets {
		if candidate == a {
			return key, nil
		}
	}
	return "", fmt.Errorf("transaction asset %s not registered on portfolio", a.Symbol)
}

func classForCategory(category string) (*types.AssetClass, error) {
	switch types.AssetCategory(category) {
	case types.CategoryEquity:
		return types.Equity, nil
	case types.CategoryETC:
		return types.ETC, nil
	case types.CategoryETF:
		return types.ETF, nil
	case types.CategoryCurrency:
		return types.Currency, nil
	default:
		return nil, fmt.Errorf("%w: unknown asset category %q", types.ErrInvalidArgument, category)
	}
}

func decimalFromString(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}
