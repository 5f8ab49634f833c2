package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	tags      []string
}

// Memory is an in-process cache used as the mirror behind the shared store
// and as the sole cache when no shared store is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	// tagIndex maps tag -> set of keys carrying it.
	tagIndex map[string]map[string]struct{}
	now      func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string]*memoryEntry),
		tagIndex: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

var _ Cache = (*Memory)(nil)

// Get implements Cache. Expired entries are treated as misses and removed
// lazily.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		m.removeLocked(key)
		m.mu.Unlock()
		return nil, ErrMiss
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(key)
	m.entries[key] = &memoryEntry{
		value:     stored,
		expiresAt: m.now().Add(ttl),
		tags:      tags,
	}
	for _, tag := range tags {
		keys, ok := m.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

// InvalidateTag implements Cache.
func (m *Memory) InvalidateTag(_ context.Context, tag string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.tagIndex[tag] {
		m.removeLocked(key)
		removed++
	}
	delete(m.tagIndex, tag)
	return removed, nil
}

// Flush implements Cache.
func (m *Memory) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	m.tagIndex = make(map[string]map[string]struct{})
	return nil
}

// Sweep removes expired entries. Called periodically by the maintenance
// scheduler.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			m.removeLocked(key)
			removed++
		}
	}
	return removed
}

// removeLocked drops a key and its tag index entries. Caller holds mu.
func (m *Memory) removeLocked(key string) {
	entry, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, tag := range entry.tags {
		if keys, ok := m.tagIndex[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tagIndex, tag)
			}
		}
	}
}
