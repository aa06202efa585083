package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	percentScale  = 2
	absoluteScale = 8
)

// ChangeResult is the windowed movement of one symbol. When the history
// does not reach back far enough, DataAvailable is false and every figure
// is zero, a normal state for a newly tracked symbol rather than an error.
type ChangeResult struct {
	Absolute      decimal.Decimal
	Percent       decimal.Decimal
	OldPrice      decimal.Decimal
	NewPrice      decimal.Decimal
	DataAvailable bool
}

// ChangeOverWindow compares the latest snapshot against the one at or
// before the window start. Percent is rounded to 2 decimals; absolute to 8
// to keep precision for low-value assets.
func (s *PriceStore) ChangeOverWindow(ctx context.Context, symbol string, hours int) (ChangeResult, error) {
	if hours <= 0 {
		return ChangeResult{}, fmt.Errorf("store: change window must be positive, got %d", hours)
	}

	newPrice, err := s.LatestPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChangeResult{}, nil
		}
		return ChangeResult{}, err
	}

	windowStart := s.nowFn().UTC().Add(-time.Duration(hours) * time.Hour)
	oldPrice, err := s.PriceAtOrBefore(ctx, symbol, windowStart)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ChangeResult{}, nil
		}
		return ChangeResult{}, err
	}
	if !oldPrice.IsPositive() {
		return ChangeResult{}, nil
	}

	diff := newPrice.Sub(oldPrice)
	return ChangeResult{
		Absolute:      diff.Round(absoluteScale),
		Percent:       diff.Div(oldPrice).Mul(decimal.NewFromInt(100)).Round(percentScale),
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		DataAvailable: true,
	}, nil
}
