package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory LRU cache with TTL support. It is safe for
// concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	cfg     Config
	stats   Stats
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a new in-memory LRU cache and starts its
// expiration sweeper. Call Close to stop it.
func NewMemoryCache(cfg Config) *MemoryCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}

	c := &MemoryCache{
		items:  make(map[string]*list.Element),
		lru:    list.New(),
		cfg:    cfg,
		now:    time.Now,
		stopCh: make(chan struct{}),
		stats: Stats{
			MaxSize:      cfg.MaxSize,
			MaxSizeBytes: cfg.MaxSizeBytes,
		},
	}

	go c.cleanupLoop()

	return c
}

// Get retrieves a value by key and marks it most recently used.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, ErrNotFound
	}

	entry := elem.Value.(*Entry)
	if entry.IsExpired(c.now()) {
		c.removeElement(elem)
		c.stats.Misses++
		c.stats.Expirations++
		return nil, ErrNotFound
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++

	return entry.Value, nil
}

// Set stores a value, evicting least recently used entries as needed.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	size := int64(len(key) + len(value))
	if c.cfg.MaxSizeBytes > 0 && size > c.cfg.MaxSizeBytes {
		return ErrValueTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	entry := &Entry{Key: key, Value: value, Size: size}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	for c.needsEviction(size) {
		c.evictOldest()
	}

	c.items[key] = c.lru.PushFront(entry)
	c.stats.Size++
	c.stats.SizeBytes += size
	c.stats.Sets++

	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return ErrNotFound
	}
	c.removeElement(elem)
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.stats.Size = 0
	c.stats.SizeBytes = 0

	return nil
}

// Stats returns a copy of the cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the expiration sweeper.
func (c *MemoryCache) Close() error {
	c.stopped.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryCache) needsEviction(additionalSize int64) bool {
	if c.lru.Len() == 0 {
		return false
	}
	if int64(c.lru.Len()) >= c.cfg.MaxSize {
		return true
	}
	return c.cfg.MaxSizeBytes > 0 && c.stats.SizeBytes+additionalSize > c.cfg.MaxSizeBytes
}

// evictOldest removes the least recently used entry.
func (c *MemoryCache) evictOldest() {
	if elem := c.lru.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
	}
}

func (c *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*Entry)
	delete(c.items, entry.Key)
	c.lru.Remove(elem)
	c.stats.Size--
	c.stats.SizeBytes -= entry.Size
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes expired entries.
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*Entry).IsExpired(now) {
			c.removeElement(elem)
			c.stats.Expirations++
		}
		elem = prev
	}
}
