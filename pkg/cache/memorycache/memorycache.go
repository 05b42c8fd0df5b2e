// Package memorycache is an in-process LRU cache with per-entry TTL. It backs
// the resolved-permission cache; the working set is one entry per active
// session, so a simple mutex-guarded map with an eviction list is enough.
package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/asahina/tobira/pkg/cache"
)

type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Cache implements cache.Cache with LRU eviction and TTL expiry.
type Cache struct {
	mu sync.Mutex

	items     map[string]*list.Element
	evictList *list.List // front = most recently used
	maxItems  int

	hits        uint64
	misses      uint64
	keysAdded   uint64
	keysEvicted uint64
}

// Config holds configuration for the memory cache.
type Config struct {
	// MaxItems is the maximum number of cached entries. Least recently used
	// entries are evicted past this limit. Zero means 4096.
	MaxItems int
}

// New creates a new memory cache.
func New(config *Config) *Cache {
	maxItems := config.MaxItems
	if maxItems <= 0 {
		maxItems = 4096
	}
	return &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxItems:  maxItems,
	}
}

// Get retrieves a value. Expired entries are removed on access.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	c.hits++
	return ent.value, true
}

// Set stores a value with the given TTL, evicting the least recently used
// entry if the cache is full.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(ttl)

	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.evictList.MoveToFront(elem)
		return nil
	}

	elem := c.evictList.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem
	c.keysAdded++

	for len(c.items) > c.maxItems {
		oldest := c.evictList.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.keysEvicted++
	}

	return nil
}

// Delete removes a value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	return nil
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Metrics returns cache statistics.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &cache.Metrics{
		Hits:        c.hits,
		Misses:      c.misses,
		KeysAdded:   c.keysAdded,
		KeysEvicted: c.keysEvicted,
	}
}

// requires lock
func (c *Cache) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.evictList.Remove(elem)
}

var _ cache.Cache = (*Cache)(nil)
