// Package cache memoizes per-file usage-detection results for files the
// analyzed project does not own (vendor/dependency code). Entries are
// keyed by file content identity so a changed file misses naturally;
// a per-path key index supports selective eviction ahead of TTL expiry.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/pci/internal/detect"
)

// Cache configuration constants
const (
	DefaultMaxEntries      = 2000
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = 30 * time.Minute
)

// Config defines cache configuration options
type Config struct {
	MaxEntries      int
	TTL             time.Duration
	AutoCleanup     bool
	CleanupInterval time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries:      DefaultMaxEntries,
		TTL:             DefaultTTL,
		AutoCleanup:     false,
		CleanupInterval: DefaultCleanupInterval,
	}
}

type entry struct {
	usages   []detect.Usage
	path     string
	cachedAt int64 // Unix nano for atomic compare
}

// ResultCache provides lock-free result caching using sync.Map.
// Last-writer-wins under concurrent Put for the same key is acceptable:
// values are deterministic given the same file content and target.
type ResultCache struct {
	entries sync.Map // map[string]*entry
	keys    sync.Map // map[string]map[string]struct{}  path -> key set

	// Configuration (read-only after creation)
	maxEntries int
	ttlNanos   int64

	// Atomic counters
	hits          int64
	misses        int64
	evictions     int64
	totalRequests int64
	count         int64

	keysMu    sync.Mutex // guards mutation of per-path key sets
	createdAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

// New creates a new result cache
func New(cfg Config) *ResultCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	c := &ResultCache{
		maxEntries: cfg.MaxEntries,
		ttlNanos:   cfg.TTL.Nanoseconds(),
		createdAt:  time.Now(),
		stop:       make(chan struct{}),
	}
	if cfg.AutoCleanup {
		interval := cfg.CleanupInterval
		if interval <= 0 {
			interval = DefaultCleanupInterval
		}
		go c.autoCleanup(interval)
	}
	return c
}

// Key derives the cache key for a scan of content for target. The content
// hash makes the key self-invalidating on file change.
func Key(target string, content []byte) string {
	var b strings.Builder
	b.Grow(16 + 1 + len(target))
	b.WriteString(strconv.FormatUint(xxhash.Sum64(content), 16))
	b.WriteByte(':')
	b.WriteString(target)
	return b.String()
}

// Get retrieves cached usages. The second return is false on miss or
// expiry; expired entries are deleted lazily.
func (c *ResultCache) Get(key string) ([]detect.Usage, bool) {
	atomic.AddInt64(&c.totalRequests, 1)
	val, ok := c.entries.Load(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	e := val.(*entry)
	if time.Now().UnixNano()-atomic.LoadInt64(&e.cachedAt) > atomic.LoadInt64(&c.ttlNanos) {
		c.deleteKey(key, e.path)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return e.usages, true
}

// Put stores usages for a key, recording the originating path for
// selective invalidation.
func (c *ResultCache) Put(key, path string, usages []detect.Usage) {
	e := &entry{
		usages:   usages,
		path:     path,
		cachedAt: time.Now().UnixNano(),
	}
	if _, loaded := c.entries.Swap(key, e); !loaded {
		if atomic.AddInt64(&c.count, 1) > int64(c.maxEntries) {
			c.evictOldest()
		}
	}
	c.trackKey(path, key)
}

func (c *ResultCache) trackKey(path, key string) {
	c.keysMu.Lock()
	defer c.keysMu.Unlock()
	val, _ := c.keys.LoadOrStore(path, map[string]struct{}{})
	val.(map[string]struct{})[key] = struct{}{}
}

func (c *ResultCache) deleteKey(key, path string) {
	if _, loaded := c.entries.LoadAndDelete(key); loaded {
		atomic.AddInt64(&c.count, -1)
		atomic.AddInt64(&c.evictions, 1)
	}
	if path == "" {
		return
	}
	c.keysMu.Lock()
	defer c.keysMu.Unlock()
	if val, ok := c.keys.Load(path); ok {
		set := val.(map[string]struct{})
		delete(set, key)
		if len(set) == 0 {
			c.keys.Delete(path)
		}
	}
}

// InvalidatePath drops every entry recorded for the given file path
func (c *ResultCache) InvalidatePath(path string) int {
	c.keysMu.Lock()
	val, ok := c.keys.LoadAndDelete(path)
	c.keysMu.Unlock()
	if !ok {
		return 0
	}
	dropped := 0
	for key := range val.(map[string]struct{}) {
		if _, loaded := c.entries.LoadAndDelete(key); loaded {
			atomic.AddInt64(&c.count, -1)
			atomic.AddInt64(&c.evictions, 1)
			dropped++
		}
	}
	return dropped
}

// Flush removes all entries and returns how many were dropped
func (c *ResultCache) Flush() int {
	dropped := 0
	c.entries.Range(func(key, _ interface{}) bool {
		if _, loaded := c.entries.LoadAndDelete(key); loaded {
			dropped++
		}
		return true
	})
	c.keys.Range(func(key, _ interface{}) bool {
		c.keys.Delete(key)
		return true
	})
	atomic.AddInt64(&c.count, int64(-dropped))
	atomic.AddInt64(&c.evictions, int64(dropped))
	return dropped
}

// CleanExpired removes expired entries and returns how many were dropped
func (c *ResultCache) CleanExpired() int {
	now := time.Now().UnixNano()
	ttl := atomic.LoadInt64(&c.ttlNanos)
	cleaned := 0
	c.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if now-atomic.LoadInt64(&e.cachedAt) > ttl {
			c.deleteKey(key.(string), e.path)
			cleaned++
		}
		return true
	})
	return cleaned
}

// evictOldest removes the oldest entry; called when the size limit is hit
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestPath string
	oldestTime := time.Now().UnixNano()

	c.entries.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		cachedAt := atomic.LoadInt64(&e.cachedAt)
		if cachedAt < oldestTime {
			oldestTime = cachedAt
			oldestKey = key.(string)
			oldestPath = e.path
		}
		return true
	})

	if oldestKey != "" {
		c.deleteKey(oldestKey, oldestPath)
	}
}

func (c *ResultCache) autoCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.CleanExpired()
		case <-c.stop:
			return
		}
	}
}

// Close stops the auto-cleanup goroutine if one is running
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// UpdateTTL updates the TTL and drops entries that are expired under it
func (c *ResultCache) UpdateTTL(ttl time.Duration) {
	atomic.StoreInt64(&c.ttlNanos, ttl.Nanoseconds())
	c.CleanExpired()
}

// Stats holds cache statistics
type Stats struct {
	Entries       int           `json:"entries"`
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	Evictions     int64         `json:"evictions"`
	TotalRequests int64         `json:"total_requests"`
	HitRate       float64       `json:"hit_rate"`
	TTL           time.Duration `json:"-"`
	TTLHours      float64       `json:"ttl_hours"`
	Uptime        time.Duration `json:"-"`
	UptimeSec     float64       `json:"uptime_sec"`
}

// Stats returns a snapshot of cache statistics
func (c *ResultCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	total := atomic.LoadInt64(&c.totalRequests)
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	ttl := time.Duration(atomic.LoadInt64(&c.ttlNanos))
	uptime := time.Since(c.createdAt)
	return Stats{
		Entries:       int(atomic.LoadInt64(&c.count)),
		Hits:          hits,
		Misses:        atomic.LoadInt64(&c.misses),
		Evictions:     atomic.LoadInt64(&c.evictions),
		TotalRequests: total,
		HitRate:       hitRate,
		TTL:           ttl,
		TTLHours:      ttl.Hours(),
		Uptime:        uptime,
		UptimeSec:     uptime.Seconds(),
	}
}
