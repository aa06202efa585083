package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"quotefeed/pkg/quote"
)

// memConn is an in-memory stand-in for the snapshot table. It embeds the
// SqlConn interface for signature compatibility; only the methods the
// store actually uses are implemented.
type memConn struct {
	sqlx.SqlConn
	rows    []memRow
	execErr error
}

type memRow struct {
	symbol    string
	price     string
	source    string
	createdAt time.Time
}

type memResult struct{ affected int64 }

func (r memResult) LastInsertId() (int64, error) { return 0, nil }
func (r memResult) RowsAffected() (int64, error) { return r.affected, nil }

func (c *memConn) ExecCtx(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.execErr != nil {
		return nil, c.execErr
	}
	switch {
	case strings.Contains(query, "INSERT INTO price_snapshots"):
		c.rows = append(c.rows, memRow{
			symbol:    args[0].(string),
			price:     args[1].(string),
			source:    args[2].(string),
			createdAt: args[3].(time.Time),
		})
		return memResult{affected: 1}, nil
	case strings.Contains(query, "DELETE FROM price_snapshots"):
		cutoff := args[0].(time.Time)
		var kept []memRow
		var deleted int64
		for _, row := range c.rows {
			if row.createdAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, row)
		}
		c.rows = kept
		return memResult{affected: deleted}, nil
	}
	return nil, errors.New("memConn: unexpected exec: " + query)
}

func (c *memConn) QueryRowCtx(ctx context.Context, v any, query string, args ...any) error {
	dst, ok := v.(*snapshotRow)
	if !ok {
		return errors.New("memConn: unexpected row type")
	}
	symbol := args[0].(string)
	var limit time.Time
	hasLimit := strings.Contains(query, "created_at <=")
	if hasLimit {
		limit = args[1].(time.Time)
	}

	var match *memRow
	for i := range c.rows {
		row := &c.rows[i]
		if row.symbol != symbol {
			continue
		}
		if hasLimit && row.createdAt.After(limit) {
			continue
		}
		if match == nil || row.createdAt.After(match.createdAt) {
			match = row
		}
	}
	if match == nil {
		return sqlx.ErrNotFound
	}
	*dst = snapshotRow{Price: match.price, CreatedAt: match.createdAt}
	return nil
}

func (c *memConn) QueryRowsCtx(ctx context.Context, v any, query string, args ...any) error {
	dst, ok := v.(*[]snapshotRow)
	if !ok {
		return errors.New("memConn: unexpected rows type")
	}
	symbol := args[0].(string)
	since := args[1].(time.Time)

	var matches []snapshotRow
	for _, row := range c.rows {
		if row.symbol == symbol && !row.createdAt.Before(since) {
			matches = append(matches, snapshotRow{Price: row.price, CreatedAt: row.createdAt})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	*dst = matches
	return nil
}

func testSymbols(t *testing.T) *quote.SymbolSet {
	t.Helper()
	set, err := quote.NewSymbolSet([]quote.SymbolSpec{
		{Symbol: "BTC", UpstreamID: "BTCUSDT"},
		{Symbol: "ETH", UpstreamID: "ETHUSDT"},
		{Symbol: "USDT", Stable: true, PinnedPrice: "1"},
	})
	require.NoError(t, err)
	return set
}

func newTestStore(t *testing.T) (*PriceStore, *memConn) {
	t.Helper()
	conn := &memConn{}
	st := NewPriceStore(Config{Conn: conn, Symbols: testSymbols(t)})
	return st, conn
}

func d(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(raw)
}

func TestStorePrices(t *testing.T) {
	ctx := context.Background()

	t.Run("stores valid batch with one timestamp", func(t *testing.T) {
		st, conn := newTestStore(t)
		stored, err := st.StorePrices(ctx, quote.PriceMap{
			"BTC":  d(t, "43250.10"),
			"ETH":  d(t, "2310.55"),
			"USDT": d(t, "1"),
		}, "primary")
		require.NoError(t, err)
		require.Equal(t, 3, stored)
		require.Len(t, conn.rows, 3)
		for _, row := range conn.rows {
			require.Equal(t, conn.rows[0].createdAt, row.createdAt)
			require.Equal(t, "primary", row.source)
		}
	})

	t.Run("invalid item is skipped, rest of batch stores", func(t *testing.T) {
		st, conn := newTestStore(t)
		stored, err := st.StorePrices(ctx, quote.PriceMap{
			"BTC": d(t, "-5"),
			"ETH": d(t, "2310.55"),
		}, "primary")
		require.NoError(t, err)
		require.Equal(t, 1, stored)
		require.Len(t, conn.rows, 1)
		require.Equal(t, "ETH", conn.rows[0].symbol)
	})

	t.Run("unknown symbol is skipped", func(t *testing.T) {
		st, conn := newTestStore(t)
		stored, err := st.StorePrices(ctx, quote.PriceMap{
			"DOGE": d(t, "0.1"),
			"BTC":  d(t, "43250.10"),
		}, "primary")
		require.NoError(t, err)
		require.Equal(t, 1, stored)
		require.Len(t, conn.rows, 1)
	})

	t.Run("database failure aborts", func(t *testing.T) {
		st, conn := newTestStore(t)
		conn.execErr = errors.New("connection refused")
		_, err := st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, "1")}, "primary")
		require.Error(t, err)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		st, conn := newTestStore(t)
		stored, err := st.StorePrices(ctx, quote.PriceMap{}, "primary")
		require.NoError(t, err)
		require.Equal(t, 0, stored)
		require.Empty(t, conn.rows)
	})
}

func TestLatestPrice(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	_, err := st.LatestPrice(ctx, "BTC")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, "43000")}, "primary")
	require.NoError(t, err)
	st.nowFn = func() time.Time { return time.Now().Add(time.Minute) }
	_, err = st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, "43250.10")}, "mirror-1")
	require.NoError(t, err)

	price, err := st.LatestPrice(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, "43250.1", price.String())
}

func TestPriceAtOrBefore(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, raw := range []string{"100", "105", "110"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		st.nowFn = func() time.Time { return ts }
		_, err := st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, raw)}, "primary")
		require.NoError(t, err)
	}

	price, err := st.PriceAtOrBefore(ctx, "BTC", base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "105", price.String())

	// Exactly at a snapshot instant counts.
	price, err = st.PriceAtOrBefore(ctx, "BTC", base)
	require.NoError(t, err)
	require.Equal(t, "100", price.String())

	_, err = st.PriceAtOrBefore(ctx, "BTC", base.Add(-time.Minute))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPriceHistory(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, raw := range []string{"100", "105", "110"} {
		ts := now.Add(-time.Duration(48-i*24) * time.Hour)
		st.nowFn = func() time.Time { return ts }
		_, err := st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, raw)}, "primary")
		require.NoError(t, err)
	}
	st.nowFn = func() time.Time { return now }

	points, err := st.PriceHistory(ctx, "BTC", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "105", points[0].Price.String())
	require.Equal(t, "110", points[1].Price.String())
	require.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestCleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	st, conn := newTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	old := now.AddDate(0, 0, -10)
	st.nowFn = func() time.Time { return old }
	_, err := st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, "100")}, "primary")
	require.NoError(t, err)
	st.nowFn = func() time.Time { return now }
	_, err = st.StorePrices(ctx, quote.PriceMap{"BTC": d(t, "110")}, "primary")
	require.NoError(t, err)

	deleted, err := st.CleanupOlderThan(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Len(t, conn.rows, 1)

	// A second pass with no new writes deletes nothing.
	deleted, err = st.CleanupOlderThan(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)

	_, err = st.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
