// Package ratelimit gates outbound quote requests so mirrors never see
// two calls closer than the configured minimum interval.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MinInterval is a process-wide gate enforcing a minimum spacing between
// governed calls. Concurrent callers queue behind the last reserved slot,
// so the spacing guarantee holds regardless of caller concurrency.
type MinInterval struct {
	interval time.Duration

	mu    sync.Mutex
	last  time.Time
	nowFn func() time.Time
}

// NewMinInterval constructs a gate. A non-positive interval disables it.
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{interval: interval, nowFn: time.Now}
}

// Wait reserves the next slot and suspends until it arrives, or returns
// early when the context is cancelled.
func (m *MinInterval) Wait(ctx context.Context) error {
	if m == nil || m.interval <= 0 {
		return nil
	}

	m.mu.Lock()
	now := m.nowFn()
	at := m.last.Add(m.interval)
	if at.Before(now) {
		at = now
	}
	m.last = at
	m.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
