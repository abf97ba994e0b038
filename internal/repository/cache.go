package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"tradesim/calendar"
	"tradesim/types"
)

// provider is what the cache decorates: any source of quote series and
// corporate actions.
type provider interface {
	Quotes(ctx context.Context, symbol string, start, end calendar.Date) ([]types.Quote, error)
	Actions(ctx context.Context, symbol string, start, end calendar.Date) ([]types.CorporateAction, error)
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key       TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);`

// Cache is a read-through quote cache backed by a local sqlite file.
// Entries older than the TTL are evicted on access, so a long-lived
// cache file keeps serving fresh ranges while stale ones are refetched.
type Cache struct {
	db   *sql.DB
	next provider
	ttl  time.Duration
	now  func() time.Time
	log  zerolog.Logger
}

// NewCache opens (or creates) the cache file at path, decorating next.
func NewCache(path string, ttl time.Duration, next provider, log zerolog.Logger) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{
		db:   db,
		next: next,
		ttl:  ttl,
		now:  time.Now,
		log:  log.With().Str("component", "cache").Logger(),
	}, nil
}

// Close releases the cache file.
func (c *Cache) Close() error { return c.db.Close() }

// Quotes serves the series from the cache when fresh, otherwise fetches
// from the wrapped provider and stores the result.
func (c *Cache) Quotes(ctx context.Context, symbol string, start, end calendar.Date) ([]types.Quote, error) {
	key := fmt.Sprintf("quotes|%s|%s|%s", symbol, start, end)
	var cached []quoteDTO
	hit, err := c.lookup(ctx, key, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		c.log.Debug().Str("symbol", symbol).Msg("quote cache hit")
		return quotesFromDTO(cached)
	}

	quotes, err := c.next.Quotes(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, quotesToDTO(quotes)); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Actions serves corporate actions with the same read-through policy.
func (c *Cache) Actions(ctx context.Context, symbol string, start, end calendar.Date) ([]types.CorporateAction, error) {
	key := fmt.Sprintf("actions|%s|%s|%s", symbol, start, end)
	var cached []actionDTO
	hit, err := c.lookup(ctx, key, &cached)
	if err != nil {
		return nil, err
	}
	if hit {
		c.log.Debug().Str("symbol", symbol).Msg("action cache hit")
		return actionsFromDTO(cached)
	}

	actions, err := c.next.Actions(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, key, actionsToDTO(actions)); err != nil {
		return nil, err
	}
	return actions, nil
}

// lookup unmarshals a fresh entry into out and reports whether one was
// found. Expired entries are deleted and reported as misses.
func (c *Cache) lookup(ctx context.Context, key string, out any) (bool, error) {
	var payload []byte
	var storedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM entries WHERE key = ?`, key).
		Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache lookup %s: %w", key, err)
	}

	if c.now().Sub(time.Unix(storedAt, 0)) > c.ttl {
		c.log.Debug().Str("key", key).Msg("evicting expired cache entry")
		if _, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
			return false, fmt.Errorf("cache evict %s: %w", key, err)
		}
		return false, nil
	}

	if err := msgpack.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) store(ctx context.Context, key string, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (key, payload, stored_at) VALUES (?, ?, ?)`,
		key, payload, c.now().Unix())
	if err != nil {
		return fmt.Errorf("cache store %s: %w", key, err)
	}
	return nil
}

// Decimals travel as strings so the payload survives library upgrades.
type quoteDTO struct {
	Date  string `msgpack:"date"`
	Open  string `msgpack:"open"`
	Close string `msgpack:"close"`
}

type actionDTO struct {
	Date  string `msgpack:"date"`
	Kind  string `msgpack:"kind"`
	Value string `msgpack:"value"`
}

func quotesToDTO(quotes []types.Quote) []quoteDTO {
	out := make([]quoteDTO, len(quotes))
	for i, q := range quotes {
		out[i] = quoteDTO{Date: q.Date.String(), Open: q.Open.String(), Close: q.Close.String()}
	}
	return out
}

func quotesFromDTO(dtos []quoteDTO) ([]types.Quote, error) {
	quotes := make([]types.Quote, len(dtos))
	for i, dto := range dtos {
		date, err := calendar.ParseDate(dto.Date)
		if err != nil {
			return nil, fmt.Errorf("cached quote date: %w", err)
		}
		open, err := decimalFromString(dto.Open)
		if err != nil {
			return nil, err
		}
		close, err := decimalFromString(dto.Close)
		if err != nil {
			return nil, err
		}
		quotes[i] = types.Quote{Date: date, Open: open, Close: close}
	}
	return quotes, nil
}

func actionsToDTO(actions []types.CorporateAction) []actionDTO {
	out := make([]actionDTO, len(actions))
	for i, a := range actions {
		out[i] = actionDTO{Date: a.Date.String(), Kind: string(a.Kind), Value: a.Value.String()}
	}
	return out
}

func actionsFromDTO(dtos []actionDTO) ([]types.CorporateAction, error) {
	actions := make([]types.CorporateAction, len(dtos))
	for i, dto := range dtos {
		date, err := calendar.ParseDate(dto.Date)
		if err != nil {
			return nil, fmt.Errorf("cached action date: %w", err)
		}
		verb, err := actionVerb(dto.Kind)
		if err != nil {
			return nil, err
		}
		value, err := decimalFromString(dto.Value)
		if err != nil {
			return nil, err
		}
		actions[i] = types.CorporateAction{Date: date, Kind: verb, Value: value}
	}
	return actions, nil
}
