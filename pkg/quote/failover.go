package quote

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"quotefeed/pkg/retry"
)

// Failover tries an ordered list of sources until one answers. Each source
// gets its own retry budget: rate limits cool down on the same host, legal
// blocks (451) advance immediately, other transient failures back off
// exponentially. When every host is exhausted the last error propagates;
// a terminal failure is never swallowed.
type Failover struct {
	sources []Source
	handler *retry.Handler
}

// NewFailover composes sources in priority order.
func NewFailover(handler *retry.Handler, sources ...Source) *Failover {
	return &Failover{sources: sources, handler: handler}
}

// Name identifies the composite source.
func (f *Failover) Name() string {
	return "failover"
}

// FetchPrices walks the host list in order and returns the first answer,
// tagged with the provenance of the host that produced it.
func (f *Failover) FetchPrices(ctx context.Context) (PriceMap, string, error) {
	if len(f.sources) == 0 {
		return nil, "", fmt.Errorf("quote: no sources configured")
	}

	var lastErr error
	for _, source := range f.sources {
		var (
			prices     PriceMap
			provenance string
		)
		err := f.handler.Do(ctx, func() error {
			var ferr error
			prices, provenance, ferr = source.FetchPrices(ctx)
			return ferr
		})
		if err == nil {
			return prices, provenance, nil
		}
		if ctx.Err() != nil {
			return nil, "", err
		}
		lastErr = err
		if retry.IsBlocked(err) {
			logx.WithContext(ctx).Infof("quote: host %s legally blocked, advancing", source.Name())
		} else {
			logx.WithContext(ctx).Errorf("quote: host %s exhausted: %v", source.Name(), err)
		}
	}
	return nil, "", fmt.Errorf("quote: all hosts failed: %w", lastErr)
}
