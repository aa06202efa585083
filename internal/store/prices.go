// Package store persists price snapshots to Postgres and serves the
// time-series reads the rest of the platform consumes. The snapshot table
// is append-only: rows are never updated, only inserted and eventually
// pruned by retention.
//
// Expected schema:
//
//	CREATE TABLE price_snapshots (
//	    id         BIGSERIAL PRIMARY KEY,
//	    symbol     TEXT        NOT NULL,
//	    price      NUMERIC     NOT NULL,
//	    source     TEXT        NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_price_snapshots_symbol_time ON price_snapshots (symbol, created_at DESC);
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "quotefeed/internal/cache"
	"quotefeed/pkg/quote"
)

// ErrNotFound indicates no snapshot satisfies the query. Consumers treat
// this as "price not available", not a hard failure.
var ErrNotFound = errors.New("store: price not found")

// PricePoint is one historical observation.
type PricePoint struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// PriceStore reads and writes the snapshot time series. Latest prices are
// mirrored into Redis with a short TTL; Postgres stays the source of truth
// and cache failures only log.
type PriceStore struct {
	conn    sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
	symbols *quote.SymbolSet
	nowFn   func() time.Time
}

// Config enumerates dependencies required by the price store.
type Config struct {
	Conn    sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
	Symbols *quote.SymbolSet
}

// NewPriceStore wires a price store.
func NewPriceStore(cfg Config) *PriceStore {
	return &PriceStore{
		conn:    cfg.Conn,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
		symbols: cfg.Symbols,
		nowFn:   time.Now,
	}
}

type cachedPrice struct {
	Price string `json:"price"`
	Ts    int64  `json:"ts"`
}

type snapshotRow struct {
	Price     string    `db:"price"`
	CreatedAt time.Time `db:"created_at"`
}

// StorePrices appends one snapshot per valid entry, all stamped with the
// same instant and provenance. Items with unknown symbols or invalid
// prices are skipped without aborting the batch; a database failure does
// abort, since nothing usable was produced. Returns the stored count.
func (s *PriceStore) StorePrices(ctx context.Context, prices quote.PriceMap, source string) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	now := s.nowFn().UTC()

	symbols := make([]string, 0, len(prices))
	for symbol := range prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	const stmt = `
INSERT INTO price_snapshots (symbol, price, source, created_at)
VALUES ($1, $2, $3, $4);`

	stored := 0
	for _, symbol := range symbols {
		price := prices[symbol]
		if s.symbols != nil && !s.symbols.Contains(symbol) {
			logx.WithContext(ctx).Debugf("store: skipping unknown symbol %s", symbol)
			continue
		}
		if !quote.ValidPrice(price) {
			logx.WithContext(ctx).Debugf("store: skipping invalid price %s for %s", price, symbol)
			continue
		}
		if _, err := s.conn.ExecCtx(ctx, stmt, symbol, price.String(), source, now); err != nil {
			return stored, fmt.Errorf("store: insert snapshot %s: %w", symbol, err)
		}
		stored++
		s.cachePrice(ctx, symbol, price, now)
	}
	return stored, nil
}

// LatestPrice returns the most recent snapshot price for symbol.
func (s *PriceStore) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if cached, ok := s.cachedLatest(ctx, symbol); ok {
		return cached, nil
	}

	const q = `
SELECT price, created_at FROM price_snapshots
WHERE symbol = $1 ORDER BY created_at DESC LIMIT 1`

	var row snapshotRow
	if err := s.conn.QueryRowCtx(ctx, &row, q, symbol); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("store: latest price %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("store: corrupt price for %s: %w", symbol, err)
	}
	s.cachePrice(ctx, symbol, price, row.CreatedAt)
	return price, nil
}

// PriceAtOrBefore returns the snapshot price closest to but not after the
// target time.
func (s *PriceStore) PriceAtOrBefore(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	const q = `
SELECT price, created_at FROM price_snapshots
WHERE symbol = $1 AND created_at <= $2 ORDER BY created_at DESC LIMIT 1`

	var row snapshotRow
	if err := s.conn.QueryRowCtx(ctx, &row, q, symbol, at.UTC()); err != nil {
		if errors.Is(err, sqlx.ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("store: price at-or-before %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("store: corrupt price for %s: %w", symbol, err)
	}
	return price, nil
}

// PriceHistory returns snapshots inside the trailing window, oldest first.
func (s *PriceStore) PriceHistory(ctx context.Context, symbol string, windowHours int) ([]PricePoint, error) {
	since := s.nowFn().UTC().Add(-time.Duration(windowHours) * time.Hour)

	const q = `
SELECT price, created_at FROM price_snapshots
WHERE symbol = $1 AND created_at >= $2 ORDER BY created_at ASC`

	var rows []snapshotRow
	if err := s.conn.QueryRowsCtx(ctx, &rows, q, symbol, since); err != nil {
		return nil, fmt.Errorf("store: price history %s: %w", symbol, err)
	}

	points := make([]PricePoint, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			logx.WithContext(ctx).Errorf("store: corrupt history price for %s: %v", symbol, err)
			continue
		}
		points = append(points, PricePoint{Price: price, Timestamp: row.CreatedAt})
	}
	return points, nil
}

// CleanupOlderThan prunes snapshots beyond the retention window and
// returns the number of rows deleted.
func (s *PriceStore) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("store: retention days must be positive, got %d", days)
	}
	cutoff := s.nowFn().UTC().AddDate(0, 0, -days)

	const stmt = `DELETE FROM price_snapshots WHERE created_at < $1`
	result, err := s.conn.ExecCtx(ctx, stmt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: cleanup rows affected: %w", err)
	}
	return deleted, nil
}

func (s *PriceStore) cachePrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.PriceTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.PriceLatestKey(symbol)
	payload := cachedPrice{Price: price.String(), Ts: ts.UnixMilli()}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("store: cache price key=%s err=%v", key, err)
	}
}

func (s *PriceStore) cachedLatest(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if s.cache == nil {
		return decimal.Zero, false
	}
	var payload cachedPrice
	if err := s.cache.GetCtx(ctx, cachekeys.PriceLatestKey(symbol), &payload); err != nil {
		if !s.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("store: cache read %s err=%v", symbol, err)
		}
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}
