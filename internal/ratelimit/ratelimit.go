// Package ratelimit implements fixed-window request budgets. Each key gets a
// counter that resets when its window elapses; a burst of up to twice the
// limit is possible across a window boundary, which is an accepted property
// of the fixed-window scheme.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// Store increments the counter for a key within the current fixed window and
// reports the post-increment count plus the window's reset time.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Config describes one call class budget.
type Config struct {
	// Name namespaces keys, e.g. "api", "login", "ai".
	Name   string
	Limit  int
	Window time.Duration
}

// Result is the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before retrying. Zero when
// the request was allowed.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	d := time.Until(r.ResetAt)
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Limiter gates requests against a shared counter store, falling back to a
// local store when the shared one is unreachable. Degraded operation keeps
// per-instance budgets instead of failing open.
type Limiter struct {
	cfg      Config
	primary  Store
	fallback Store
	log      *logger.Logger
}

// New builds a limiter. fallback may be nil when primary is already local.
func New(cfg Config, primary, fallback Store, log *logger.Logger) *Limiter {
	return &Limiter{cfg: cfg, primary: primary, fallback: fallback, log: log}
}

// Config returns the limiter's budget settings.
func (l *Limiter) Config() Config { return l.cfg }

// Allow records one request against the key's budget and reports whether it
// fits. The count always increments, even for denied requests; denial does
// not refund the slot.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	fullKey := fmt.Sprintf("rl:%s:%s", l.cfg.Name, key)

	count, resetAt, err := l.primary.Incr(ctx, fullKey, l.cfg.Window)
	if err != nil {
		if l.fallback == nil {
			return Result{}, err
		}
		l.log.WithContext(ctx).WithError(err).Warn("rate limit store unreachable, using local fallback")
		count, resetAt, err = l.fallback.Incr(ctx, fullKey, l.cfg.Window)
		if err != nil {
			return Result{}, err
		}
	}

	remaining := l.cfg.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.cfg.Limit),
		Limit:     l.cfg.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
