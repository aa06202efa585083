package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quotefeed/pkg/retry"
)

func TestTickerPrices(t *testing.T) {
	t.Run("full list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, tickerPricePath, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"43250.10"},{"symbol":"ETHUSDT","price":"2310.55"}]`))
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		tickers, err := client.TickerPrices(context.Background())
		require.NoError(t, err)
		require.Len(t, tickers, 2)
		require.Equal(t, "BTCUSDT", tickers[0].Symbol)
		require.Equal(t, "43250.10", tickers[0].Price)
	})

	t.Run("filtered by symbols", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Contains(t, r.URL.RawQuery, "symbols=")
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"43250.10"}]`))
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		tickers, err := client.TickerPrices(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		require.Len(t, tickers, 1)
	})

	t.Run("single object payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"43250.10"}`))
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		tickers, err := client.TickerPrices(context.Background())
		require.NoError(t, err)
		require.Len(t, tickers, 1)
		require.Equal(t, "BTCUSDT", tickers[0].Symbol)
	})

	t.Run("rate limit surfaces status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1003,"msg":"Too many requests"}`, http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		_, err := client.TickerPrices(context.Background())
		require.Error(t, err)
		require.True(t, retry.IsRateLimited(err))
	})

	t.Run("legal block surfaces status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnavailableForLegalReasons)
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		_, err := client.TickerPrices(context.Background())
		require.Error(t, err)
		require.True(t, retry.IsBlocked(err))
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		}))
		defer server.Close()

		client := NewClient(WithBaseURL(server.URL))
		_, err := client.TickerPrices(context.Background())
		require.Error(t, err)
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		client := NewClient(WithBaseURL(server.URL))
		_, err := client.TickerPrices(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
