// Package querycache is a bounded in-process cache of ranked search results.
// Eviction is FIFO by insertion order, deliberately not LRU: repeated reads
// must not keep stale queries alive past capacity pressure.
package querycache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pravnik/pravnik/internal/search/scorer"
)

// Cache maps deterministic query keys to ranked result lists.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
	hits    atomic.Int64
	misses  atomic.Int64
	logger  *slog.Logger
}

type entry struct {
	key     string
	results []scorer.Result
}

// New creates a Cache holding at most maxSize entries.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache{
		entries: make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached results for key. It never mutates entry order.
func (c *Cache) Get(key string) ([]scorer.Result, bool) {
	c.mu.Lock()
	elem, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return elem.Value.(*entry).results, true
}

// Set stores results under key, evicting the earliest-inserted entry first
// when the cache is full.
func (c *Cache) Set(key string, results []scorer.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*entry).results = results
		return
	}
	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			evicted := oldest.Value.(*entry)
			c.order.Remove(oldest)
			delete(c.entries, evicted.key)
			c.logger.Debug("evicted oldest query", "key", evicted.key)
		}
	}
	c.entries[key] = c.order.PushBack(&entry{key: key, results: results})
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (c *Cache) HitRate() float64 {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
