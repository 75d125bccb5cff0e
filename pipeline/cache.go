package pipeline

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

// Instance is one cached per-target pipeline: the composed
// Switch→Compatibility→Provider chain keyed by (provider.model.keyId,
// runtimeKey). Cleanup is invoked by the cache on eviction.
type Instance interface {
	Cleanup()
}

// Cache is the LRU-bounded pipeline instance cache from spec §4.3:
// default capacity 100, evicts 10% of entries (at least one) on
// overflow, and runs eviction Cleanup asynchronously so a slow teardown
// never blocks the request that triggered it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	logger   *zap.Logger
}

type cacheEntry struct {
	key      string
	instance Instance
}

const DefaultCacheCapacity = 100

// NewCache builds a Cache. capacity <= 0 uses DefaultCacheCapacity.
func NewCache(capacity int, logger *zap.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		logger:   logger,
	}
}

// GetOrCreate returns the cached instance for key, creating it via build
// on a miss. On overflow it evicts ceil(capacity*0.1) least-recently-used
// entries (minimum one), running each evicted instance's Cleanup in its
// own goroutine.
func (c *Cache) GetOrCreate(key string, build func() (Instance, error)) (Instance, error) {
	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		inst := el.Value.(*cacheEntry).instance
		c.mu.Unlock()
		return inst, nil
	}
	c.mu.Unlock()

	inst, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us to build the same key.
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		go inst.Cleanup()
		return el.Value.(*cacheEntry).instance, nil
	}

	el := c.ll.PushFront(&cacheEntry{key: key, instance: inst})
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		toEvict := c.ll.Len() - c.capacity
		if min := (c.capacity + 9) / 10; toEvict < min {
			toEvict = min
		}
		c.evictLocked(toEvict)
	}
	return inst, nil
}

func (c *Cache) evictLocked(n int) {
	evicted := 0
	for evicted < n {
		back := c.ll.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.items, entry.key)
		go entry.instance.Cleanup()
		evicted++
	}
	if evicted > 0 {
		c.logger.Debug("pipeline cache evicted entries", zap.Int("count", evicted))
	}
}

// Len reports the current number of cached instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Remove evicts key immediately, running Cleanup asynchronously. A
// no-op if key is not cached.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return
	}
	entry := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.items, key)
	go entry.instance.Cleanup()
}
