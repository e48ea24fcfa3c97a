// Package cache is a process-memory key/value store with per-class
// TTLs. Entries are immutable once written and only ever replaced
// wholesale, so a plain RWMutex map is sufficient.
package cache

import (
	"sync"
	"time"
)

// Class selects which TTL applies to an entry. Quotes refresh on a
// near-real-time budget; historical bars change far less often.
type Class int

const (
	ClassQuote Class = iota
	ClassBar
)

// Config carries the per-class TTLs.
type Config struct {
	QuoteTTL time.Duration
	BarTTL   time.Duration
}

// DefaultConfig keeps the bar TTL at roughly 10x the quote TTL.
func DefaultConfig() Config {
	return Config{
		QuoteTTL: 30 * time.Second,
		BarTTL:   5 * time.Minute,
	}
}

type entry struct {
	value      any
	class      Class
	insertedAt time.Time
}

// Cache expires entries on read; there is no background sweep.
// Unbounded growth is acceptable at dashboard scale (the symbol
// universe is bounded).
type Cache struct {
	cfg Config
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

// Option customizes a Cache.
type Option func(*Cache)

// WithNow injects a clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(cfg Config, opts ...Option) *Cache {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultConfig().QuoteTTL
	}
	if cfg.BarTTL <= 0 {
		cfg.BarTTL = DefaultConfig().BarTTL
	}
	c := &Cache{
		cfg:   cfg,
		now:   time.Now,
		items: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) ttl(cl Class) time.Duration {
	if cl == ClassBar {
		return c.cfg.BarTTL
	}
	return c.cfg.QuoteTTL
}

// Get returns the cached value, or a miss when no entry exists or the
// entry has aged past its class TTL.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl(e.class) {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry.
func (c *Cache) Put(key string, cl Class, value any) {
	e := entry{value: value, class: cl, insertedAt: c.now()}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

// Clear drops every entry. Safe to call concurrently with in-flight
// fetches; a fetch started before Clear may still repopulate its key
// afterward, which the next poll supersedes.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
