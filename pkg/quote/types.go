package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice indicates a price that failed validation (unparseable,
// zero or negative).
var ErrInvalidPrice = errors.New("quote: invalid price")

// PriceMap maps a platform symbol to its validated current price.
type PriceMap map[string]decimal.Decimal

// Source fetches current prices for the supported symbol set. Partial
// results are allowed; implementations return the provenance tag of the
// upstream that answered.
type Source interface {
	Name() string
	FetchPrices(ctx context.Context) (PriceMap, string, error)
}

// ParsePrice is the single parse-and-validate entry point for upstream
// price strings. A valid price is a finite decimal strictly greater than
// zero; everything else is ErrInvalidPrice.
func ParsePrice(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}
	price, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	if !ValidPrice(price) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	return price, nil
}

// ValidPrice reports whether a price is storable.
func ValidPrice(price decimal.Decimal) bool {
	return price.IsPositive()
}
