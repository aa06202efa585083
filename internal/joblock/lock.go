// Package joblock provides in-process mutual exclusion for the ingestion
// job. The TTL bounds staleness from a crashed holder: an expired lock is
// reclaimed on the next inspection instead of wedging ingestion forever.
// Correct for a single active scheduler instance only; a multi-instance
// deployment needs a shared TTL-capable store behind the same surface.
package joblock

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
)

const defaultTTL = 10 * time.Minute

// ErrAlreadyLocked indicates a concurrent run currently holds the lock.
var ErrAlreadyLocked = errors.New("joblock: already locked")

// Lock is a TTL-bounded single-holder lock. Tokens tie a release to the
// acquisition that produced it, so a superseded run cannot release a lock
// it no longer owns.
type Lock struct {
	ttl time.Duration

	mu         sync.Mutex
	token      string
	acquiredAt time.Time
	nowFn      func() time.Time
}

// New constructs a lock with the given TTL.
func New(ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Lock{ttl: ttl, nowFn: time.Now}
}

// IsLocked reports whether the lock is currently held, reclaiming it first
// when the TTL has lapsed.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reclaimExpired()
	return l.token != ""
}

// Acquire takes the lock and returns the holder token, or ErrAlreadyLocked
// when another run holds it.
func (l *Lock) Acquire() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reclaimExpired()
	if l.token != "" {
		return "", ErrAlreadyLocked
	}
	l.token = uuid.NewString()
	l.acquiredAt = l.nowFn()
	return l.token, nil
}

// Release frees the lock. A token that does not match the current holder
// is ignored with a warning: it belongs to a run that was superseded after
// its TTL lapsed, and releasing on its behalf would break the new holder.
func (l *Lock) Release(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return
	}
	if token != l.token {
		logx.Slowf("joblock: stale release ignored (token mismatch)")
		return
	}
	l.token = ""
	l.acquiredAt = time.Time{}
}

// TTL returns the configured lock TTL.
func (l *Lock) TTL() time.Duration {
	return l.ttl
}

func (l *Lock) reclaimExpired() {
	if l.token == "" {
		return
	}
	held := l.nowFn().Sub(l.acquiredAt)
	if held <= l.ttl {
		return
	}
	logx.Slowf("joblock: reclaiming lock held for %s (ttl %s); previous run presumed dead", held, l.ttl)
	l.token = ""
	l.acquiredAt = time.Time{}
}
