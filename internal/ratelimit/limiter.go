// Package ratelimit bounds per-client request rates with an exact
// sliding-window log: every admitted request's timestamp is kept for the
// trailing window, so the limit is exact at the cost of O(window) memory per
// active identity.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Decision is the outcome of one window evaluation.
type Decision struct {
	Allowed bool
	Limit   int
	// Remaining is the post-admission quota left in the window; zero on
	// rejection.
	Remaining int
	// RetryAfter is how long until the oldest recorded request ages out of
	// the window. On admission it is simply the window length (the worst
	// case reset horizon).
	RetryAfter time.Duration
}

// Store evaluates the sliding window for one identity. Implementations must
// purge entries older than the window before counting, and record the request
// only when admitting it.
type Store interface {
	Allow(ctx context.Context, identity string) (Decision, error)
}

// Limiter is the in-memory window store. Idle identities are removed by
// Sweep, either on a background interval or on demand.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time

	now func() time.Time
}

// NewLimiter creates an in-memory limiter admitting at most limit requests
// per identity in any trailing window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow evaluates and, when admitting, records the request for identity.
func (l *Limiter) Allow(_ context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.windows[identity][:0]
	for _, ts := range l.windows[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.windows[identity] = kept

	if len(kept) >= l.limit {
		// Entries are appended in time order, so the head is the oldest.
		retry := kept[0].Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAfter: retry}, nil
	}

	l.windows[identity] = append(kept, now)
	return Decision{
		Allowed:    true,
		Limit:      l.limit,
		Remaining:  l.limit - len(kept) - 1,
		RetryAfter: l.window,
	}, nil
}

// Sweep drops identities whose window is empty after purging, returning how
// many were removed. Without it the identity map grows without bound over the
// process lifetime.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for id, window := range l.windows {
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Identities returns the number of tracked identities, swept or not.
func (l *Limiter) Identities() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RunSweeper purges idle identities every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 && logger != nil {
				logger.Debug("rate limit sweep",
					slog.Int("removed", removed),
					slog.Int("remaining", l.Identities()))
			}
		}
	}
}
