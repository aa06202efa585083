// Package binance implements a minimal client for Binance-compatible
// ticker endpoints. Several public mirrors expose the same API surface,
// so one client type serves every configured host.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quotefeed/pkg/retry"
)

const (
	defaultBaseURL     = "https://api.binance.com"
	tickerPricePath    = "/api/v3/ticker/price"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBodyBytes  = 512
)

// Ticker is one upstream price record.
type Ticker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Client wraps access to one ticker host.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default host.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a ticker client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the configured host.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TickerPrices fetches current prices for the given upstream symbols.
// Passing no symbols fetches the full ticker list.
func (c *Client) TickerPrices(ctx context.Context, symbols ...string) ([]Ticker, error) {
	endpoint := c.baseURL + tickerPricePath
	if len(symbols) > 0 {
		encoded, err := json.Marshal(symbols)
		if err != nil {
			return nil, fmt.Errorf("binance: encode symbols: %w", err)
		}
		endpoint += "?symbols=" + url.QueryEscape(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("binance: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, &retry.StatusError{Status: resp.StatusCode, Body: snippet}
	}

	var tickers []Ticker
	if err := json.Unmarshal(body, &tickers); err != nil {
		// Single-symbol requests return a bare object.
		var single Ticker
		if err2 := json.Unmarshal(body, &single); err2 == nil && single.Symbol != "" {
			return []Ticker{single}, nil
		}
		return nil, fmt.Errorf("binance: decode response: %w", err)
	}
	return tickers, nil
}
