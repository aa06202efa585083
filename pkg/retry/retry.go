package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
	defaultCooldown  = 30 * time.Second
	defaultFactor    = 2.0
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Config encapsulates backoff and cool-down settings for one host.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Cooldown is the fixed wait applied after a rate-limit response,
	// replacing the exponential schedule for that attempt.
	Cooldown   time.Duration
	Multiplier float64
}

// Handler executes retryable operations with backoff.
type Handler struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a handler with sane defaults.
func New(cfg Config) *Handler {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaultFactor
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Handler{cfg: cfg, sleep: sleepCtx}
}

// Do executes fn with retries until it succeeds or exhausts the budget.
// Rate-limited responses wait the fixed cool-down instead of the backoff
// schedule; legally blocked responses return immediately so the caller can
// advance to another host.
func (h *Handler) Do(ctx context.Context, fn func() error) error {
	var attempt int
	backoff := h.cfg.BaseDelay

	for {
		err := fn()
		if err == nil {
			return nil
		}
		if IsBlocked(err) || !shouldRetry(err) || attempt >= h.cfg.MaxRetries {
			return err
		}
		attempt++

		wait := backoff
		if IsRateLimited(err) {
			wait = h.cfg.Cooldown
		} else {
			backoff = time.Duration(math.Min(
				float64(h.cfg.MaxDelay),
				float64(backoff)*h.cfg.Multiplier,
			))
		}
		if serr := h.sleep(ctx, wait); serr != nil {
			return serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRateLimited reports whether err is an upstream throttling response.
// 418 is included because some quote mirrors escalate repeat offenders
// from 429 to 418 IP bans.
func IsRateLimited(err error) bool {
	var apiErr *StatusError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status == http.StatusTeapot
	}
	return false
}

// IsBlocked reports whether err is a geo/legal restriction (HTTP 451).
// Retrying the same host is pointless; callers should fail over.
func IsBlocked(err error) bool {
	var apiErr *StatusError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnavailableForLegalReasons
	}
	return false
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	if IsRateLimited(err) {
		return true
	}

	var apiErr *StatusError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Treat unknown transport errors as retryable to be safe.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
