// Package searchcache memoises site search results per query.
//
// Entries live in memory; when a Store is configured they are also written
// through to it and read back on a memory miss, so results survive restarts.
package searchcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/metrics"
)

// DefaultTTL is how long a search result is served from cache.
const DefaultTTL = time.Hour

// Entry is one cached search.
type Entry struct {
	Results catalog.Categorized
	At      time.Time
}

// Store persists entries. Get returns found=false for unknown keys.
type Store interface {
	Get(ctx context.Context, key string) (e Entry, found bool, err error)
	Put(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl   time.Duration
	store Store
	log   logrus.FieldLogger
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// New returns a cache with the given TTL (<= 0 uses DefaultTTL). store may be nil.
func New(ttl time.Duration, store Store, log logrus.FieldLogger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		store:   store,
		log:     logging.Component(log, "cache"),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// Key normalises a query to its cache key.
func Key(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get returns the cached results for query when younger than the TTL.
func (c *Cache) Get(ctx context.Context, query string) (catalog.Categorized, bool) {
	key := Key(query)
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.Sub(e.At) >= c.ttl {
		delete(c.entries, key)
		c.mu.Unlock()
		metrics.SearchCache.WithLabelValues("expired").Inc()
		c.dropStored(ctx, key)
		return catalog.Categorized{}, false
	}
	c.mu.Unlock()
	if ok {
		metrics.SearchCache.WithLabelValues("hit").Inc()
		c.log.Debugf("search cache hit %q", key)
		return e.Results, true
	}

	if c.store != nil {
		se, found, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warnf("search cache store get %q: %v", key, err)
		} else if found && now.Sub(se.At) < c.ttl {
			c.mu.Lock()
			c.entries[key] = se
			c.mu.Unlock()
			metrics.SearchCache.WithLabelValues("hit").Inc()
			c.log.Debugf("search cache hit %q (store)", key)
			return se.Results, true
		} else if found {
			c.dropStored(ctx, key)
		}
	}
	metrics.SearchCache.WithLabelValues("miss").Inc()
	return catalog.Categorized{}, false
}

// Put stores results for query stamped with the current time.
func (c *Cache) Put(ctx context.Context, query string, res catalog.Categorized) {
	key := Key(query)
	e := Entry{Results: res, At: c.now()}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Put(ctx, key, e); err != nil {
			c.log.Warnf("search cache store put %q: %v", key, err)
		}
	}
}

// Len is the number of in-memory entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Prune drops expired in-memory entries and returns how many were removed.
func (c *Cache) Prune() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.At) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) dropStored(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warnf("search cache store delete %q: %v", key, err)
	}
}
