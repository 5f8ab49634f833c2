// Package cache provides TTL caching with tag-based invalidation. Entries are
// written to a shared store and mirrored in process; reads prefer the shared
// store and fall back to the mirror when it is unreachable.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque byte values under string keys. Tags group keys for bulk
// invalidation after writes to the underlying data.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, key string) error
	// InvalidateTag drops every key carrying the tag and reports how many
	// entries were removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)
	Flush(ctx context.Context) error
}
