package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"quotefeed/pkg/quote/binance"
	"quotefeed/pkg/ratelimit"
)

// TickerClient abstracts the upstream ticker endpoint so adapters can be
// exercised with fakes.
type TickerClient interface {
	TickerPrices(ctx context.Context, symbols ...string) ([]binance.Ticker, error)
}

// Adapter maps one upstream host onto the supported symbol set. Fetches
// are idempotent and safe to retry: stable symbols resolve from their
// pinned constants, everything else comes from a single governed network
// call. Entries with invalid prices are skipped with a warning, never a
// failure, so partial results still flow through.
type Adapter struct {
	name    string
	client  TickerClient
	symbols *SymbolSet
	gate    *ratelimit.MinInterval
}

// NewAdapter constructs an adapter over one host client. The gate may be
// nil when outbound calls are ungoverned (tests).
func NewAdapter(name string, client TickerClient, symbols *SymbolSet, gate *ratelimit.MinInterval) *Adapter {
	return &Adapter{name: name, client: client, symbols: symbols, gate: gate}
}

// Name identifies the host for provenance tagging.
func (a *Adapter) Name() string {
	return a.name
}

// FetchPrices resolves the supported symbol set against this host.
func (a *Adapter) FetchPrices(ctx context.Context) (PriceMap, string, error) {
	prices := make(PriceMap, len(a.symbols.Specs()))
	for _, spec := range a.symbols.Specs() {
		if pinned, ok := a.symbols.Pinned(spec.Symbol); ok {
			prices[spec.Symbol] = pinned
		}
	}

	upstream := a.symbols.UpstreamIDs()
	if len(upstream) == 0 {
		return prices, a.name, nil
	}

	if err := a.gate.Wait(ctx); err != nil {
		return nil, "", err
	}
	tickers, err := a.client.TickerPrices(ctx, upstream...)
	if err != nil {
		return nil, "", fmt.Errorf("quote: host %s: %w", a.name, err)
	}

	byUpstream := make(map[string]binance.Ticker, len(tickers))
	for _, ticker := range tickers {
		byUpstream[strings.ToUpper(ticker.Symbol)] = ticker
	}

	for _, spec := range a.symbols.Specs() {
		if spec.Stable {
			continue
		}
		ticker, ok := byUpstream[spec.UpstreamID]
		if !ok {
			logx.WithContext(ctx).Infof("quote: host %s missing ticker for %s (%s)", a.name, spec.Symbol, spec.UpstreamID)
			continue
		}
		price, err := ParsePrice(ticker.Price)
		if err != nil {
			logx.WithContext(ctx).Errorf("quote: host %s symbol %s: %v", a.name, spec.Symbol, err)
			continue
		}
		prices[spec.Symbol] = price
	}
	return prices, a.name, nil
}
