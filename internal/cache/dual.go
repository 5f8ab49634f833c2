package cache

import (
	"context"
	"errors"
	"time"

	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// Dual writes through to a shared store and an in-process mirror. Reads
// prefer the shared store; when it errors (not a miss) the mirror answers
// instead, so a shared-store outage degrades to per-instance caching rather
// than no caching.
type Dual struct {
	shared Cache
	mirror Cache
	log    *logger.Logger
}

// NewDual wires the two paths.
func NewDual(shared, mirror Cache, log *logger.Logger) *Dual {
	return &Dual{shared: shared, mirror: mirror, log: log}
}

var _ Cache = (*Dual)(nil)

// Get implements Cache.
func (d *Dual) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := d.shared.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, ErrMiss) {
		// Shared store is authoritative for misses; the mirror may hold
		// an entry invalidated elsewhere.
		return nil, ErrMiss
	}
	d.log.WithContext(ctx).WithError(err).Warn("shared cache unreachable, reading mirror")
	return d.mirror.Get(ctx, key)
}

// Set implements Cache. A shared-store write failure is logged but does not
// fail the call; the mirror write keeps the instance warm.
func (d *Dual) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if err := d.shared.Set(ctx, key, value, ttl, tags...); err != nil {
		d.log.WithContext(ctx).WithError(err).Warn("shared cache write failed")
	}
	return d.mirror.Set(ctx, key, value, ttl, tags...)
}

// Delete implements Cache.
func (d *Dual) Delete(ctx context.Context, key string) error {
	sharedErr := d.shared.Delete(ctx, key)
	mirrorErr := d.mirror.Delete(ctx, key)
	if sharedErr != nil {
		return sharedErr
	}
	return mirrorErr
}

// InvalidateTag implements Cache. The reported count comes from the shared
// store, which sees every instance's entries; the mirror count stands in
// only when the shared store errors.
func (d *Dual) InvalidateTag(ctx context.Context, tag string) (int, error) {
	sharedCount, sharedErr := d.shared.InvalidateTag(ctx, tag)
	mirrorCount, mirrorErr := d.mirror.InvalidateTag(ctx, tag)
	if sharedErr != nil {
		return mirrorCount, sharedErr
	}
	return sharedCount, mirrorErr
}

// Flush implements Cache.
func (d *Dual) Flush(ctx context.Context) error {
	sharedErr := d.shared.Flush(ctx)
	mirrorErr := d.mirror.Flush(ctx)
	if sharedErr != nil {
		return sharedErr
	}
	return mirrorErr
}
