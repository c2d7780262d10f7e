package memory

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/medicare/medicare/backend/internal/domain/providers"
)

// DefaultCacheSize bounds each expiry class of a cache built by NewCache
const DefaultCacheSize = 4096

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-process CacheProvider. Entries live in one expirable LRU per
// expiration, so expired keys are evicted in the background and each class
// holds at most size entries. Patterns use path.Match syntax, which agrees
// with Redis globs for the keys used here.
type Cache struct {
	mu      sync.Mutex
	size    int
	classes map[time.Duration]*expirable.LRU[string, cacheEntry]
	now     func() time.Time
}

// NewCache creates an empty cache holding DefaultCacheSize entries per expiry class
func NewCache() *Cache {
	return NewCacheWithSize(DefaultCacheSize)
}

// NewCacheWithSize creates an empty cache holding at most size entries per expiry class
func NewCacheWithSize(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:    size,
		classes: make(map[time.Duration]*expirable.LRU[string, cacheEntry]),
		now:     time.Now,
	}
}

var _ providers.CacheProvider = (*Cache)(nil)

// Get retrieves a live value
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value; a non-positive expiration keeps it until deleted or evicted
func (c *Cache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	ttl := time.Duration(0)
	e := cacheEntry{value: append([]byte(nil), value...)}
	if expirationSeconds > 0 {
		ttl = time.Duration(expirationSeconds) * time.Second
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A key lives in exactly one class.
	for d, lru := range c.classes {
		if d != ttl {
			lru.Remove(key)
		}
	}
	class, ok := c.classes[ttl]
	if !ok {
		class = expirable.NewLRU[string, cacheEntry](c.size, nil, ttl)
		c.classes[ttl] = class
	}
	class.Add(key, e)
	return nil
}

// Delete removes a value
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lru := range c.classes {
		lru.Remove(key)
	}
	return nil
}

// Exists reports whether a live value is stored
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok, nil
}

// DeletePattern removes every key matching pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid cache pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lru := range c.classes {
		for _, key := range lru.Keys() {
			if ok, _ := path.Match(pattern, key); ok {
				lru.Remove(key)
			}
		}
	}
	return nil
}

// Len counts stored entries, including ones not yet swept after expiry
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, lru := range c.classes {
		n += lru.Len()
	}
	return n
}

// lookup must be called with mu held
func (c *Cache) lookup(key string) (cacheEntry, bool) {
	for _, lru := range c.classes {
		e, ok := lru.Get(key)
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
			lru.Remove(key)
			return cacheEntry{}, false
		}
		return e, true
	}
	return cacheEntry{}, false
}
