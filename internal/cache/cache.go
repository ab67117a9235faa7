package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultTTL = 5 * time.Second
	maxEntries = 1024
)

// Cache is a small in-process TTL cache. Expired entries are evicted lazily
// on read and swept when the cache is full. Keys come from clients (page and
// size), so the entry count is bounded.
//
// Every invalidation bumps a generation. A reader that loaded its value from
// the backing store before an invalidation must not write it back, so
// loaders take Generation before the load and store with SetIfGeneration.
type Cache[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	gen uint64
	m   map[string]entry[V]
}

type entry[V any] struct {
	val V
	exp time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Cache[V]{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]entry[V]),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, ok := c.m[key]; ok && now.After(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

// Set stores val. When the cache is full and nothing has expired the value is
// not stored.
func (c *Cache[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.set(key, val)
}

func (c *Cache[V]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfGeneration stores val only if nothing was invalidated since gen was
// taken. It reports whether the value was stored.
func (c *Cache[V]) SetIfGeneration(key string, val V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return false
	}
	return c.set(key, val)
}

// set requires c.mu held for writing.
func (c *Cache[V]) set(key string, val V) bool {
	now := c.now()

	if _, exists := c.m[key]; !exists && len(c.m) >= maxEntries {
		for k, e := range c.m {
			if now.After(e.exp) {
				delete(c.m, k)
			}
		}
		if len(c.m) >= maxEntries {
			return false
		}
	}

	c.m[key] = entry[V]{val: val, exp: now.Add(c.ttl)}
	return true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	c.gen++
	delete(c.m, key)
	c.mu.Unlock()
}

// DeletePrefix drops every key starting with prefix.
func (c *Cache[V]) DeletePrefix(prefix string) {
	c.mu.Lock()
	c.gen++
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
