package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryCache implements Cache using ttlcache. It backs tests and
// single-process deployments; production uses the redis implementation.
type MemoryCache struct {
	cache *ttlcache.Cache[string, string]

	// ttlcache has no compare-and-set, so SetNX serializes through this.
	mu sync.Mutex
}

// NewMemoryCache creates a new in-memory cache with automatic cleanup.
func NewMemoryCache() *MemoryCache {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryCache{cache: cache}
}

// Get implements Cache.Get.
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	item := c.cache.Get(key)
	if item == nil || item.IsExpired() {
		return "", ErrNotFound
	}
	return item.Value(), nil
}

// Set implements Cache.Set.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.cache.Set(key, value, ttl)
	return nil
}

// SetNX implements Cache.SetNX.
func (c *MemoryCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item := c.cache.Get(key); item != nil && !item.IsExpired() {
		return false, nil
	}
	c.cache.Set(key, value, ttl)
	return true, nil
}

// Delete implements Cache.Delete.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// DeleteByPattern implements Cache.DeleteByPattern.
func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}

	var matched []string
	for key := range c.cache.Items() {
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		c.cache.Delete(key)
	}
	return len(matched), nil
}

// Exists implements Cache.Exists.
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	item := c.cache.Get(key)
	return item != nil && !item.IsExpired(), nil
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	c.cache.Stop()
	return nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.Compile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}

var _ Cache = (*MemoryCache)(nil)
