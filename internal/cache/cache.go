// Package cache provides the bounded, expiring memoisation used in front of the
// configuration stores. Callers populate entries after a miss; nothing is
// written through and misses are never cached.
package cache

import (
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCapacity = 100

// Recorder observes lookups. observability.Metrics satisfies it.
type Recorder interface {
	ObserveCacheLookup(cache string, hit bool)
}

// Config sizes one cache instance. A zero TTL keeps entries until capacity evicts them.
type Config struct {
	Name     string
	Capacity int
	TTL      time.Duration
}

// Cache is a capacity- and TTL-bounded LRU safe for concurrent use.
type Cache[K comparable, V any] struct {
	name     string
	entries  *expirable.LRU[K, V]
	recorder Recorder
}

// New constructs a cache. recorder may be nil.
func New[K comparable, V any](cfg Config, recorder Recorder) *Cache[K, V] {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "default"
	}
	return &Cache[K, V]{
		name:     name,
		entries:  expirable.NewLRU[K, V](capacity, nil, cfg.TTL),
		recorder: recorder,
	}
}

// Get returns the live value stored under key. Expired entries are misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	value, ok := c.entries.Get(key)
	if c.recorder != nil {
		c.recorder.ObserveCacheLookup(c.name, ok)
	}
	return value, ok
}

// Add stores value under key, evicting the least recently used entry when full.
func (c *Cache[K, V]) Add(key K, value V) {
	c.entries.Add(key, value)
}

// Remove drops key if present.
func (c *Cache[K, V]) Remove(key K) {
	c.entries.Remove(key)
}

// Len reports the resident entry count, which may include expired entries not yet swept.
func (c *Cache[K, V]) Len() int {
	return c.entries.Len()
}

// Name is the label the cache reports lookups under.
func (c *Cache[K, V]) Name() string {
	return c.name
}

// ConnectionKey identifies a connection credential within one tenant.
type ConnectionKey struct {
	TenantID   string
	Credential string
}

// FilterKey is the canonical form of an optional listing filter.
// A nil filter and an empty filter produce different keys.
type FilterKey string

// NewFilterKey canonicalises filter independently of map iteration order.
func NewFilterKey(filter map[string]string) FilterKey {
	if filter == nil {
		return ""
	}
	values := url.Values{}
	for key, value := range filter {
		values.Set(key, value)
	}
	return FilterKey("?" + values.Encode())
}
