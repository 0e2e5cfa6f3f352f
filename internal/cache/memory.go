package cache

import (
	"sync"
	"time"
)

// memoryTier is the fast in-process tier. When the entry count exceeds
// maxEntries, the entry with the oldest LastAccessed is evicted (ties broken
// by key so eviction stays deterministic).
type memoryTier struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
}

func newMemoryTier(maxEntries int) *memoryTier {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &memoryTier{
		entries:    make(map[string]*Entry, maxEntries),
		maxEntries: maxEntries,
	}
}

// get returns the live entry for key, touching it. Expired entries are
// removed and reported as absent.
func (m *memoryTier) get(key string, now time.Time) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.Expired(now) {
		delete(m.entries, key)
		return nil, false
	}
	e.Touch(now)
	return e, true
}

// put stores an entry, evicting the least-recently-accessed one first when
// the tier is full. Returns the evicted key, if any.
func (m *memoryTier) put(e *Entry) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evictedKey := ""
	evicted := false
	if _, exists := m.entries[e.Key]; !exists && len(m.entries) >= m.maxEntries {
		evictedKey = m.lruKeyLocked()
		if evictedKey != "" {
			delete(m.entries, evictedKey)
			evicted = true
		}
	}
	m.entries[e.Key] = e
	return evictedKey, evicted
}

func (m *memoryTier) lruKeyLocked() string {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range m.entries {
		if first || e.LastAccessed.Before(oldest) ||
			(e.LastAccessed.Equal(oldest) && key < oldestKey) {
			oldestKey = key
			oldest = e.LastAccessed
			first = false
		}
	}
	return oldestKey
}

func (m *memoryTier) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry, m.maxEntries)
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep removes expired entries and returns how many were dropped.
func (m *memoryTier) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
