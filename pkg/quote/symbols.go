package quote

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolSpec describes one supported asset: how it maps onto the upstream
// ticker feed and whether it is stable-valued. Stable symbols never hit the
// network; they are pinned to a constant price.
type SymbolSpec struct {
	Symbol      string `yaml:"symbol"`
	UpstreamID  string `yaml:"upstream_id"`
	Stable      bool   `yaml:"stable"`
	PinnedPrice string `yaml:"pinned_price"`

	pinned decimal.Decimal
}

// SymbolSet is the fixed enumeration of supported symbols.
type SymbolSet struct {
	specs    []SymbolSpec
	bySymbol map[string]*SymbolSpec
}

// NewSymbolSet validates and indexes the configured specs.
func NewSymbolSet(specs []SymbolSpec) (*SymbolSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("quote: symbol set cannot be empty")
	}
	set := &SymbolSet{
		specs:    make([]SymbolSpec, 0, len(specs)),
		bySymbol: make(map[string]*SymbolSpec, len(specs)),
	}
	for _, spec := range specs {
		spec.Symbol = strings.ToUpper(strings.TrimSpace(spec.Symbol))
		spec.UpstreamID = strings.ToUpper(strings.TrimSpace(spec.UpstreamID))
		if spec.Symbol == "" {
			return nil, fmt.Errorf("quote: symbol cannot be empty")
		}
		if _, dup := set.bySymbol[spec.Symbol]; dup {
			return nil, fmt.Errorf("quote: duplicate symbol %s", spec.Symbol)
		}
		if spec.Stable {
			raw := spec.PinnedPrice
			if strings.TrimSpace(raw) == "" {
				raw = "1"
			}
			pinned, err := ParsePrice(raw)
			if err != nil {
				return nil, fmt.Errorf("quote: symbol %s: pinned price: %w", spec.Symbol, err)
			}
			spec.pinned = pinned
		} else if spec.UpstreamID == "" {
			return nil, fmt.Errorf("quote: symbol %s must specify upstream_id", spec.Symbol)
		}
		set.specs = append(set.specs, spec)
		set.bySymbol[spec.Symbol] = &set.specs[len(set.specs)-1]
	}
	return set, nil
}

// Specs returns the configured specs in declaration order.
func (s *SymbolSet) Specs() []SymbolSpec {
	return s.specs
}

// Contains reports whether symbol belongs to the supported set.
func (s *SymbolSet) Contains(symbol string) bool {
	_, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// IsStable reports whether symbol is stable-valued.
func (s *SymbolSet) IsStable(symbol string) bool {
	spec, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok && spec.Stable
}

// Pinned returns the constant price of a stable-valued symbol.
func (s *SymbolSet) Pinned(symbol string) (decimal.Decimal, bool) {
	spec, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok || !spec.Stable {
		return decimal.Zero, false
	}
	return spec.pinned, true
}

// UpstreamIDs returns upstream quote identifiers for every non-stable
// symbol, in declaration order.
func (s *SymbolSet) UpstreamIDs() []string {
	ids := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		if !spec.Stable {
			ids = append(ids, spec.UpstreamID)
		}
	}
	return ids
}
