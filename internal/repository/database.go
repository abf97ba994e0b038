// Package repository provides the data access layer: the Postgres quote
// store, the sqlite retrieval cache, portfolio snapshots and the asset
// list loader.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesim/calendar"
	"tradesim/types"
)

// Global error declarations.
var (
	ErrAssetNotFound = errors.New("not found in datasource")
	ErrNoQuotes      = errors.New("no quotations found in datasource")
	ErrUnknownAction = errors.New("unknown corporate action kind")
)

const (
	selectAssetID = `SELECT id FROM assets WHERE symbol = $1`

	selectQuotes = `SELECT day, open, close
FROM daily_quotes
WHERE asset_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day`

	selectActions = `SELECT day, kind, value
FROM corporate_actions
WHERE asset_id = $1 AND day BETWEEN $2 AND $3
ORDER BY day`
)

// querier is the subset of pgxpool.Pool the repository needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Database serves daily quotations and corporate actions out of the
// Postgres market-data store.
type Database struct {
	conn querier
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDatabase opens a connection pool to the given URL and verifies
// connectivity. Decimal columns are scanned into shopspring decimals.
func NewDatabase(ctx context.Context, dbURL string, log zerolog.Logger) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Database{
		conn: pool,
		pool: pool,
		log:  log.With().Str("component", "database").Logger(),
	}, nil
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *Database) assetID(ctx context.Context, symbol string) (int32, error) {
	var id int32
	err := db.conn.QueryRow(ctx, selectAssetID, symbol).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrAssetNotFound, symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", symbol, err)
	}
	return id, nil
}

// Quotes returns the raw daily series for the symbol over the inclusive
// date range, ordered by day. An unknown symbol is ErrAssetNotFound; a
// known symbol with no rows in range is ErrNoQuotes.
func (db *Database) Quotes(ctx context.Context, symbol string, start, end calendar.Date) ([]types.Quote, error) {
	id, err := db.assetID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(ctx, selectQuotes, id, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("quotes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var quotes []types.Quote
	for rows.Next() {
		var day time.Time
		var open, close decimal.Decimal
		if err := rows.Scan(&day, &open, &close); err != nil {
			return nil, fmt.Errorf("scanning quote for %s: %w", symbol, err)
		}
		quotes = append(quotes, types.Quote{
			Date:  calendar.DateOf(day),
			Open:  open,
			Close: close,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading quotes for %s: %w", symbol, err)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: %s between %s and %s", ErrNoQuotes, symbol, start, end)
	}
	db.log.Debug().Str("symbol", symbol).Int("rows", len(quotes)).Msg("quotes retrieved")
	return quotes, nil
}

// Actions returns the corporate actions recorded for the symbol over
// the inclusive date range. No actions is not an error.
func (db *Database) Actions(ctx context.Context, symbol string, start, end calendar.Date) ([]types.CorporateAction, error) {
	id, err := db.assetID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(ctx, selectActions, id, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("actions for %s: %w", symbol, err)
	}
	defer rows.Close()

	var actions []types.CorporateAction
	for rows.Next() {
		var day time.Time
		var kind string
		var value decimal.Decimal
		if err := rows.Scan(&day, &kind, &value); err != nil {
			return nil, fmt.Errorf("scanning action for %s: %w", symbol, err)
		}
		verb, err := actionVerb(kind)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", symbol, calendar.DateOf(day), err)
		}
		actions = append(actions, types.CorporateAction{
			Date:  calendar.DateOf(day),
			Kind:  verb,
			Value: value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading actions for %s: %w", symbol, err)
	}
	return actions, nil
}

func actionVerb(kind string) (types.Verb, error) {
	switch types.Verb(kind) {
	case types.VerbDividend, types.VerbSplit:
		return types.Verb(kind), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
}
