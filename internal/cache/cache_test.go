package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory()
	current := time.Now()
	c.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	current = current.Add(30 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	current = current.Add(31 * time.Second)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemoryTagInvalidation(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "markets:list:u1", []byte("a"), time.Minute, "markets"))
	require.NoError(t, c.Set(ctx, "markets:get:m1", []byte("b"), time.Minute, "markets"))
	require.NoError(t, c.Set(ctx, "other", []byte("c"), time.Minute, "unrelated"))

	count, err := c.InvalidateTag(ctx, "markets")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = c.Get(ctx, "markets:list:u1")
	require.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "markets:get:m1")
	require.ErrorIs(t, err, ErrMiss)

	value, err := c.Get(ctx, "other")
	require.NoError(t, err)
	require.Equal(t, []byte("c"), value)
}

func TestMemoryOverwriteRetags(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute, "old"))
	require.NoError(t, c.Set(ctx, "k", []byte("v2"), time.Minute, "new"))

	// Invalidating the stale tag must not drop the rewritten entry.
	count, err := c.InvalidateTag(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, 0, count)
	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)

	count, err = c.InvalidateTag(ctx, "new")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemorySweep(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second, "markets"))
	require.NoError(t, c.Set(ctx, "long", []byte("b"), time.Hour, "markets"))

	removed := c.Sweep(time.Now().Add(time.Minute))
	require.Equal(t, 1, removed)

	_, err := c.Get(ctx, "long")
	require.NoError(t, err)
}

func TestMemoryFlush(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute, "markets"))
	require.NoError(t, c.Flush(ctx))
	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

// erringCache fails every operation, standing in for an unreachable shared
// store.
type erringCache struct{ err error }

func (e *erringCache) Get(context.Context, string) ([]byte, error) { return nil, e.err }
func (e *erringCache) Set(context.Context, string, []byte, time.Duration, ...string) error {
	return e.err
}
func (e *erringCache) Delete(context.Context, string) error               { return e.err }
func (e *erringCache) InvalidateTag(context.Context, string) (int, error) { return 0, e.err }
func (e *erringCache) Flush(context.Context) error                        { return e.err }

func newTestDual(shared Cache) (*Dual, *Memory) {
	mirror := NewMemory()
	return NewDual(shared, mirror, logger.NewDefault("cache-test")), mirror
}

func TestDualWritesBothPaths(t *testing.T) {
	shared := NewMemory()
	dual, mirror := newTestDual(shared)
	ctx := context.Background()

	require.NoError(t, dual.Set(ctx, "k", []byte("v"), time.Minute, "markets"))

	value, err := shared.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	value, err = mirror.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestDualPrefersShared(t *testing.T) {
	shared := NewMemory()
	dual, mirror := newTestDual(shared)
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, "k", []byte("shared"), time.Minute))
	require.NoError(t, mirror.Set(ctx, "k", []byte("mirror"), time.Minute))

	value, err := dual.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), value)
}

func TestDualSharedMissIsMiss(t *testing.T) {
	shared := NewMemory()
	dual, mirror := newTestDual(shared)
	ctx := context.Background()

	// An entry only in the mirror may have been invalidated elsewhere.
	require.NoError(t, mirror.Set(ctx, "k", []byte("stale"), time.Minute))

	_, err := dual.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestDualFallsBackOnSharedError(t *testing.T) {
	shared := &erringCache{err: errors.New("connection refused")}
	dual, _ := newTestDual(shared)
	ctx := context.Background()

	// The set still succeeds via the mirror.
	require.NoError(t, dual.Set(ctx, "k", []byte("v"), time.Minute))

	value, err := dual.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestDualInvalidateTagReachesBoth(t *testing.T) {
	shared := NewMemory()
	dual, mirror := newTestDual(shared)
	ctx := context.Background()

	require.NoError(t, dual.Set(ctx, "k", []byte("v"), time.Minute, "markets"))
	count, err := dual.InvalidateTag(ctx, "markets")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = shared.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
	_, err = mirror.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}
