package quote

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"quotefeed/pkg/retry"
)

type fakeSource struct {
	name   string
	prices PriceMap
	errs   []error
	calls  int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchPrices(ctx context.Context) (PriceMap, string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, "", err
		}
	}
	return f.prices, f.name, nil
}

func testHandler() *retry.Handler {
	return retry.New(retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond, Cooldown: time.Millisecond})
}

func TestFailover(t *testing.T) {
	btc := PriceMap{"BTC": decimal.RequireFromString("43250.10")}

	t.Run("first healthy host wins", func(t *testing.T) {
		primary := &fakeSource{name: "primary", prices: btc}
		mirror := &fakeSource{name: "mirror"}
		fo := NewFailover(testHandler(), primary, mirror)

		prices, provenance, err := fo.FetchPrices(context.Background())
		require.NoError(t, err)
		require.Equal(t, "primary", provenance)
		require.Equal(t, btc, prices)
		require.Equal(t, 0, mirror.calls)
	})

	t.Run("legal block advances without burning the retry budget", func(t *testing.T) {
		primary := &fakeSource{name: "primary", errs: []error{
			&retry.StatusError{Status: http.StatusUnavailableForLegalReasons},
		}}
		mirror := &fakeSource{name: "mirror", prices: btc}
		fo := NewFailover(testHandler(), primary, mirror)

		prices, provenance, err := fo.FetchPrices(context.Background())
		require.NoError(t, err)
		require.Equal(t, "mirror", provenance)
		require.Equal(t, btc, prices)
		require.Equal(t, 1, primary.calls, "451 must not be retried on the same host")
	})

	t.Run("transient errors retry on the same host before advancing", func(t *testing.T) {
		primary := &fakeSource{name: "primary", prices: btc, errs: []error{
			&retry.StatusError{Status: http.StatusServiceUnavailable},
			&retry.StatusError{Status: http.StatusServiceUnavailable},
		}}
		fo := NewFailover(testHandler(), primary)

		_, provenance, err := fo.FetchPrices(context.Background())
		require.NoError(t, err)
		require.Equal(t, "primary", provenance)
		require.Equal(t, 3, primary.calls)
	})

	t.Run("rate limit cools down and recovers", func(t *testing.T) {
		primary := &fakeSource{name: "primary", prices: btc, errs: []error{
			&retry.StatusError{Status: http.StatusTooManyRequests},
		}}
		fo := NewFailover(testHandler(), primary)

		_, _, err := fo.FetchPrices(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, primary.calls)
	})

	t.Run("exhaustion propagates the last error", func(t *testing.T) {
		boom := &retry.StatusError{Status: http.StatusBadGateway}
		primary := &fakeSource{name: "primary", errs: []error{boom, boom, boom}}
		mirror := &fakeSource{name: "mirror", errs: []error{boom, boom, boom}}
		fo := NewFailover(testHandler(), primary, mirror)

		_, _, err := fo.FetchPrices(context.Background())
		require.Error(t, err)
		var apiErr *retry.StatusError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadGateway, apiErr.Status)
		require.Equal(t, 3, primary.calls)
		require.Equal(t, 3, mirror.calls)
	})

	t.Run("no sources is an error", func(t *testing.T) {
		fo := NewFailover(testHandler())
		_, _, err := fo.FetchPrices(context.Background())
		require.Error(t, err)
	})
}
