// Package cache provides a short-lived, key-scoped store for fetched payloads.
//
// Entries expire by age, checked on read rather than swept. The cache never
// touches the network and never returns an error: anything expired, missing,
// or unreadable is a miss.
package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/tradedeck/internal/model"
)

// Class selects the TTL applied to an entry.
type Class int

const (
	// ClassQuote is for live ticking snapshots (seconds).
	ClassQuote Class = iota
	// ClassHistory is for symbol detail and historical candles (tens of seconds).
	ClassHistory
	// ClassSynthetic is for generated fallback series. Synthetic entries keep a
	// TTL, but callers should prefer a fresh live attempt before reusing them.
	ClassSynthetic
)

// Key identifies a cached payload. Timeframe is empty for quote-class keys.
type Key struct {
	Name      string // Logical name ("historical", "portfolio", "quote", ...)
	Symbol    string
	Timeframe model.Timeframe
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Name, k.Symbol, k.Timeframe)
}

// Entry is a cached payload with its provenance.
type Entry struct {
	Payload   any
	FetchedAt time.Time
	Synthetic bool
}

// TTLs holds the per-class entry lifetimes.
type TTLs struct {
	Quote     time.Duration
	History   time.Duration
	Synthetic time.Duration
}

// DefaultTTLs returns the standard lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Quote:     5 * time.Second,
		History:   45 * time.Second,
		Synthetic: 30 * time.Second,
	}
}

// Cache is an in-process TTL cache. Safe for concurrent use.
type Cache struct {
	ttls   TTLs
	logger *slog.Logger

	mu      sync.Mutex
	entries map[Key]entry

	// Stats
	hits   int64
	misses int64
}

type entry struct {
	Entry
	class Class
}

// New creates a Cache with the given TTLs.
func New(ttls TTLs, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		ttls:    ttls,
		logger:  logger,
		entries: make(map[Key]entry),
	}
}

// Put stores a payload under key with the TTL class's lifetime.
func (c *Cache) Put(key Key, payload any, class Class, synthetic bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		Entry: Entry{
			Payload:   payload,
			FetchedAt: time.Now(),
			Synthetic: synthetic,
		},
		class: class,
	}
}

// Get returns the entry for key if present and within its TTL. Expired entries
// are deleted on the way out and reported as misses.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}

	if time.Since(e.FetchedAt) > c.ttl(e.class) {
		delete(c.entries, key)
		c.misses++
		c.logger.Debug("cache entry expired", "key", key.String())
		return Entry{}, false
	}

	c.hits++
	return e.Entry, true
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]entry)
}

// Stats returns hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}

func (c *Cache) ttl(class Class) time.Duration {
	switch class {
	case ClassQuote:
		return c.ttls.Quote
	case ClassSynthetic:
		return c.ttls.Synthetic
	default:
		return c.ttls.History
	}
}
