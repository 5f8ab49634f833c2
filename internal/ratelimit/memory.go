package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is an in-process fixed-window counter store. Increments on the
// same key are serialized by a single mutex, so concurrent callers observe
// strictly increasing counts.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*windowCounter
	now     func() time.Time
}

// NewMemoryStore creates an empty counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*windowCounter),
		now:     time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &windowCounter{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt, nil
}

// Purge drops windows that reset before now. Called periodically so idle
// keys do not accumulate.
func (s *MemoryStore) Purge(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
