package application

import (
	"sync"
	"time"
)

// DefaultReportTTL is how long a computed report is served from memory.
const DefaultReportTTL = 30 * time.Second

// reportCache keeps recently computed reports so that dashboards polling the
// aggregate endpoints do not rescan the bookings table on every request.
type reportCache struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entries map[string]reportCacheEntry
}

type reportCacheEntry struct {
	value     any
	ok        bool
	expiresAt time.Time
}

func newReportCache(ttl time.Duration, now func() time.Time) *reportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	if now == nil {
		now = time.Now
	}
	return &reportCache{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]reportCacheEntry),
	}
}

// get returns the cached value for key. hit is false when nothing fresh is cached.
func (c *reportCache) get(key string) (value any, ok, hit bool) {
	if c == nil {
		return nil, false, false
	}
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()
	if !found {
		return nil, false, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, false
	}
	return entry.value, entry.ok, true
}

// store caches a report outcome, including an empty one.
func (c *reportCache) store(key string, value any, ok bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = reportCacheEntry{value: value, ok: ok, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// invalidate drops every cached report.
func (c *reportCache) invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]reportCacheEntry)
	c.mu.Unlock()
}
