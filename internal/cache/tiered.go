package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pravnik/pravnik/pkg/clock"
	pkgerrors "github.com/pravnik/pravnik/pkg/errors"
	"github.com/pravnik/pravnik/pkg/metrics"
)

// Config tunes the tiered cache.
type Config struct {
	MaxMemoryEntries  int
	DefaultTTL        time.Duration
	CompressThreshold int
	SweepInterval     time.Duration
}

// SetOptions controls a single Set call.
type SetOptions struct {
	// Persistent also writes the entry to the durable tier.
	Persistent bool
}

// Stats is the cache observability snapshot.
type Stats struct {
	MemoryEntries int     `json:"memoryEntries"`
	MemoryHits    int64   `json:"memoryHits"`
	DurableHits   int64   `json:"durableHits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Expired       int64   `json:"expired"`
	HitRate       float64 `json:"hitRate"`
}

// Cache is the two-tier store. The durable tier may be nil, in which case
// persistent writes degrade to memory-only.
type Cache struct {
	mem     *memoryTier
	durable DurableStore
	clk     clock.Clock
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	memHits     atomic.Int64
	durableHits atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expired     atomic.Int64
}

// New creates a Cache. durable and m may be nil.
func New(cfg Config, durable DurableStore, clk clock.Clock, m *metrics.Metrics) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.CompressThreshold <= 0 {
		cfg.CompressThreshold = 1024
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{
		mem:     newMemoryTier(cfg.MaxMemoryEntries),
		durable: durable,
		clk:     clk,
		cfg:     cfg,
		logger:  slog.Default().With("component", "tiered-cache"),
		metrics: m,
	}
}

// Get looks key up in memory first, then in the durable tier, back-filling
// memory on a durable hit. Returns the uncompressed value.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := c.clk.Now()
	if e, ok := c.mem.get(key, now); ok {
		c.memHits.Add(1)
		if c.metrics != nil {
			c.metrics.TierCacheHits.WithLabelValues("memory").Inc()
		}
		return c.payload(e), true
	}

	if c.durable == nil {
		c.miss()
		return nil, false
	}
	raw, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logger.Warn("durable tier read failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !ok {
		c.miss()
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("durable entry corrupt, dropping", "key", key, "error", err)
		_ = c.durable.Delete(ctx, key)
		c.miss()
		return nil, false
	}
	if e.Expired(now) {
		_ = c.durable.Delete(ctx, key)
		c.expired.Add(1)
		c.miss()
		return nil, false
	}
	e.Touch(now)
	c.mem.put(&e)
	c.durableHits.Add(1)
	if c.metrics != nil {
		c.metrics.TierCacheHits.WithLabelValues("durable").Inc()
	}
	return c.payload(&e), true
}

// payload returns the entry's uncompressed value. A decompression failure
// falls back to treating the stored bytes as already decompressed, and a
// checksum mismatch is logged but never propagated.
func (c *Cache) payload(e *Entry) []byte {
	value := e.Value
	if e.Compressed {
		decompressed, err := decompress(value)
		if err != nil {
			c.logger.Warn("decompression failed, returning raw value", "key", e.Key, "error", err)
		} else {
			value = decompressed
		}
	}
	if e.Checksum != 0 && checksum(value) != e.Checksum {
		c.logger.Warn("checksum mismatch on cached value", "key", e.Key)
	}
	return value
}

// Set stores value under key with the given TTL (DefaultTTL when ttl <= 0).
// Persistent entries are also written to the durable tier; on a quota-style
// failure there the tier evicts its oldest quarter and the write is retried
// once. Returns false only when the persistent write ultimately failed.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, opts SetOptions) bool {
	now := c.clk.Now()
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	e := &Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
		Checksum:     checksum(value),
		Persistent:   opts.Persistent,
	}
	if len(value) > c.cfg.CompressThreshold {
		if compressed, err := compress(value); err != nil {
			c.logger.Warn("compression failed, storing raw", "key", key, "error", err)
		} else if len(compressed) < len(value) {
			e.Value = compressed
			e.Compressed = true
		}
	}

	if _, evicted := c.mem.put(e); evicted {
		c.evictions.Add(1)
		if c.metrics != nil {
			c.metrics.TierCacheEvictions.WithLabelValues("lru").Inc()
		}
	}

	if !opts.Persistent || c.durable == nil {
		return true
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Error("marshaling cache entry", "key", key, "error", err)
		return false
	}
	if err := c.durable.Set(ctx, key, raw, ttl); err != nil {
		if !errors.Is(err, pkgerrors.ErrStoreQuota) {
			c.logger.Error("durable tier write failed", "key", key, "error", err)
			return false
		}
		c.logger.Warn("durable tier full, evicting oldest quarter", "key", key)
		c.evictOldestQuarter(ctx)
		if err := c.durable.Set(ctx, key, raw, ttl); err != nil {
			c.logger.Error("durable tier write failed after eviction", "key", key, "error", err)
			return false
		}
	}
	return true
}

// evictOldestQuarter removes the quarter of durable entries with the oldest
// last access.
func (c *Cache) evictOldestQuarter(ctx context.Context) {
	keys, err := c.durable.Keys(ctx)
	if err != nil || len(keys) == 0 {
		return
	}
	type aged struct {
		key      string
		accessed time.Time
	}
	entries := make([]aged, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := c.durable.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			// Unreadable entries are the first to go.
			entries = append(entries, aged{key: key})
			continue
		}
		entries = append(entries, aged{key: key, accessed: e.LastAccessed})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].accessed.Equal(entries[j].accessed) {
			return entries[i].accessed.Before(entries[j].accessed)
		}
		return entries[i].key < entries[j].key
	})
	n := len(entries) / 4
	if n == 0 {
		n = 1
	}
	for _, victim := range entries[:n] {
		if err := c.durable.Delete(ctx, victim.key); err != nil {
			c.logger.Warn("evicting durable entry failed", "key", victim.key, "error", err)
			continue
		}
		c.evictions.Add(1)
		if c.metrics != nil {
			c.metrics.TierCacheEvictions.WithLabelValues("quota").Inc()
		}
	}
}

// Remove deletes key from every tier.
func (c *Cache) Remove(ctx context.Context, key string) {
	c.mem.delete(key)
	if c.durable != nil {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.logger.Warn("removing durable entry failed", "key", key, "error", err)
		}
	}
}

// Clear empties every tier.
func (c *Cache) Clear(ctx context.Context) {
	c.mem.clear()
	if c.durable == nil {
		return
	}
	keys, err := c.durable.Keys(ctx)
	if err != nil {
		c.logger.Warn("listing durable keys failed", "error", err)
		return
	}
	for _, key := range keys {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.logger.Warn("clearing durable entry failed", "key", key, "error", err)
		}
	}
}

// Cleanup removes expired entries from every tier and returns how many were
// dropped.
func (c *Cache) Cleanup(ctx context.Context) int {
	now := c.clk.Now()
	removed := c.mem.sweep(now)

	if c.durable != nil {
		keys, err := c.durable.Keys(ctx)
		if err != nil {
			c.logger.Warn("listing durable keys failed", "error", err)
		} else {
			for _, key := range keys {
				raw, ok, err := c.durable.Get(ctx, key)
				if err != nil || !ok {
					continue
				}
				var e Entry
				if err := json.Unmarshal(raw, &e); err != nil || e.Expired(now) {
					if delErr := c.durable.Delete(ctx, key); delErr == nil {
						removed++
					}
				}
			}
		}
	}
	if removed > 0 {
		c.expired.Add(int64(removed))
		if c.metrics != nil {
			c.metrics.TierCacheEvictions.WithLabelValues("expired").Add(float64(removed))
		}
		c.logger.Debug("cleanup swept expired entries", "removed", removed)
	}
	return removed
}

// StartSweeper runs Cleanup on SweepInterval until ctx is cancelled.
func (c *Cache) StartSweeper(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup(ctx)
			}
		}
	}()
}

// GetStats returns the current counters.
func (c *Cache) GetStats() Stats {
	memHits := c.memHits.Load()
	durableHits := c.durableHits.Load()
	misses := c.misses.Load()
	s := Stats{
		MemoryEntries: c.mem.len(),
		MemoryHits:    memHits,
		DurableHits:   durableHits,
		Misses:        misses,
		Evictions:     c.evictions.Load(),
		Expired:       c.expired.Load(),
	}
	if total := memHits + durableHits + misses; total > 0 {
		s.HitRate = float64(memHits+durableHits) / float64(total)
	}
	return s
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.TierCacheMisses.Inc()
	}
}

// SetJSON marshals v and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration, opts SetOptions) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshaling value", "key", key, "error", err)
		return false
	}
	return c.Set(ctx, key, raw, ttl, opts)
}

// GetJSON loads key and unmarshals it into v.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("unmarshaling cached value", "key", key, "error", err)
		return false
	}
	return true
}
