/*
Package cache provides an in-memory lookup-or-load cache bounded by an estimated byte
budget and an optional entry count.  Concurrent requests for a key that is not yet
resident share a single load.
*/
package cache

import (
	"fmt"
	"sync"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// Config bounds the cache.  A zero MaxBytes or MaxEntries means no limit of that kind.
type Config struct {
	MaxBytes   uint64
	MaxEntries int
}

// Stats are counters for cache activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Loads     uint64
	Evictions uint64
	Entries   int
	Bytes     uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d hits, %d misses, %d loads, %d evictions, %d entries using %s",
		s.Hits, s.Misses, s.Loads, s.Evictions, s.Entries, humanize.Bytes(s.Bytes))
}

// LoadFunc produces the value for a key that is not resident.
type LoadFunc func() (interface{}, error)

type entry struct {
	value    interface{}
	numBytes uint64
}

// Cache is a goroutine-safe LRU cache.  Values handed out remain valid after
// eviction; eviction only drops the cache's reference.
type Cache struct {
	cfg Config

	mu    sync.Mutex // guards fields below
	lru   *lru.Cache
	bytes uint64
	stats Stats

	group singleflight.Group
}

// New returns a cache bounded by the given configuration.
func New(cfg Config) *Cache {
	c := &Cache{
		cfg: cfg,
		lru: lru.New(cfg.MaxEntries),
	}
	c.lru.OnEvicted = c.onEvicted
	return c
}

// called with mu held.
func (c *Cache) onEvicted(key lru.Key, value interface{}) {
	e := value.(entry)
	c.bytes -= e.numBytes
	c.stats.Evictions++
}

// Get returns a resident value without loading it.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, found := c.lru.Get(key)
	if !found {
		return nil, false
	}
	return v.(entry).value, true
}

// GetOrLoad returns the value for the key, calling load if it is not resident.
// Only one load per key is in flight at any time; other callers for the same key
// wait for it and receive its result.  Failed loads are not cached.
func (c *Cache) GetOrLoad(key string, load LoadFunc) (interface{}, error) {
	c.mu.Lock()
	if v, found := c.lru.Get(key); found {
		c.stats.Hits++
		c.mu.Unlock()
		return v.(entry).value, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	return c.group.Do(key, func() (interface{}, error) {
		// a load for this key may have completed since the miss.
		if v, found := c.Get(key); found {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.add(key, v)
		return v, nil
	})
}

func (c *Cache) add(key string, v interface{}) {
	e := entry{value: v, numBytes: uint64(size.Of(v))}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Loads++
	if old, found := c.lru.Get(key); found {
		c.bytes -= old.(entry).numBytes
	}
	c.lru.Add(key, e)
	c.bytes += e.numBytes
	if c.cfg.MaxBytes == 0 {
		return
	}
	// always keep the newest entry even if it alone exceeds the budget.
	for c.bytes > c.cfg.MaxBytes && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Purge drops all resident values.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru = lru.New(c.cfg.MaxEntries)
	c.lru.OnEvicted = c.onEvicted
	c.bytes = 0
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.bytes
	return s
}
