package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

func newTestLimiter(cfg Config, primary, fallback Store) *Limiter {
	return New(cfg, primary, fallback, logger.NewDefault("ratelimit-test"))
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	limiter := newTestLimiter(Config{Name: "api", Limit: 3, Window: time.Minute}, NewMemoryStore(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		require.Equal(t, 3-(i+1), res.Remaining)
	}

	res, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
	require.Greater(t, res.RetryAfter(), time.Duration(0))
}

func TestLimiterKeysAreIsolated(t *testing.T) {
	limiter := newTestLimiter(Config{Name: "api", Limit: 1, Window: time.Minute}, NewMemoryStore(), nil)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = limiter.Allow(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestWindowResets(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	limiter := newTestLimiter(Config{Name: "api", Limit: 1, Window: time.Minute}, store, nil)
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	current = current.Add(61 * time.Second)
	res, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestLoginBudget(t *testing.T) {
	limiter := newTestLimiter(Config{Name: "login", Limit: 5, Window: 15 * time.Minute}, NewMemoryStore(), nil)
	ctx := context.Background()

	key := "10.0.0.1:alice@example.com"
	for i := 0; i < 5; i++ {
		res, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Greater(t, res.RetryAfter(), time.Duration(0))

	// Another caller's attempts stay unaffected.
	res, err = limiter.Allow(ctx, "10.0.0.2:alice@example.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	limiter := newTestLimiter(Config{Name: "api", Limit: 50, Window: time.Minute}, store, nil)
	ctx := context.Background()

	const requests = 100
	allowed := make(chan bool, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Allow(ctx, "shared")
			require.NoError(t, err)
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	require.Equal(t, 50, admitted)
}

type failingStore struct{ err error }

func (f *failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, f.err
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	primary := &failingStore{err: errors.New("connection refused")}
	limiter := newTestLimiter(Config{Name: "api", Limit: 1, Window: time.Minute}, primary, NewMemoryStore())
	ctx := context.Background()

	res, err := limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, res.Allowed)
}

func TestNoFallbackSurfacesError(t *testing.T) {
	primary := &failingStore{err: errors.New("connection refused")}
	limiter := newTestLimiter(Config{Name: "api", Limit: 1, Window: time.Minute}, primary, nil)

	_, err := limiter.Allow(context.Background(), "user-1")
	require.Error(t, err)
}

func TestMemoryStorePurge(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "rl:api:a", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Incr(ctx, "rl:api:b", time.Hour)
	require.NoError(t, err)

	removed := store.Purge(time.Now().Add(2 * time.Minute))
	require.Equal(t, 1, removed)

	// The surviving window keeps its count.
	count, _, err := store.Incr(ctx, "rl:api:b", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
