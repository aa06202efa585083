// Package display applies the read-time markdown transform to prices
// rendered for end users. Stored snapshots are never touched, so the raw
// history stays auditable regardless of display policy.
package display

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"quotefeed/internal/store"
	"quotefeed/pkg/quote"
)

var hundred = decimal.NewFromInt(100)

// SettingsProvider yields the current markdown configuration.
type SettingsProvider interface {
	MarkdownSettings(ctx context.Context) (store.MarkdownConfig, error)
}

// Adjuster transforms raw prices for display. Stable-valued symbols are
// exempt and always pass through unchanged.
type Adjuster struct {
	settings SettingsProvider
	symbols  *quote.SymbolSet
}

// NewAdjuster wires a display adjuster.
func NewAdjuster(settings SettingsProvider, symbols *quote.SymbolSet) *Adjuster {
	return &Adjuster{settings: settings, symbols: symbols}
}

// Adjust returns the display price for symbol. When markdown is active, a
// non-exempt price is scaled by (100 - percentage) / 100. A settings read
// failure falls back to the raw price: showing an unadjusted price beats
// showing none.
func (a *Adjuster) Adjust(ctx context.Context, symbol string, price decimal.Decimal) decimal.Decimal {
	if a.symbols != nil && a.symbols.IsStable(symbol) {
		return price
	}

	cfg, err := a.settings.MarkdownSettings(ctx)
	if err != nil {
		logx.WithContext(ctx).Errorf("display: markdown settings unavailable: %v", err)
		return price
	}
	if !cfg.Active {
		return price
	}
	if cfg.Percent.IsNegative() || cfg.Percent.GreaterThan(hundred) {
		logx.WithContext(ctx).Errorf("display: markdown percentage %s out of range, ignoring", cfg.Percent)
		return price
	}
	return price.Mul(hundred.Sub(cfg.Percent)).Div(hundred)
}
