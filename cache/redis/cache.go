package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.pilab.hu/authgate/cache"
)

// Cache implements the cache.Cache interface using Redis. Single-key
// operations rely on Redis's own atomicity; no additional locking is done.
type Cache struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewCache creates a new [Cache] instance.
func NewCache(client *redis.Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the namespaced Redis key.
func (r *Cache) redisKey(key string) string {
	if r.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

// Get implements cache.Cache.Get.
func (r *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key from Redis: %w", err)
	}
	return val, nil
}

// Set implements cache.Cache.Set.
func (r *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("refusing to set key %q without expiry", key)
	}
	if err := r.client.Set(ctx, r.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key in Redis: %w", err)
	}
	return nil
}

// SetNX implements cache.Cache.SetNX.
func (r *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("refusing to set key %q without expiry", key)
	}
	ok, err := r.client.SetNX(ctx, r.redisKey(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx key in Redis: %w", err)
	}
	return ok, nil
}

// Delete implements cache.Cache.Delete.
func (r *Cache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key from Redis: %w", err)
	}
	return nil
}

// DeleteByPattern implements cache.Cache.DeleteByPattern using SCAN, so a
// large keyspace never blocks the server the way KEYS would.
func (r *Cache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	var cursor uint64
	match := r.redisKey(pattern)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys in Redis: %w", err)
		}

		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete matched keys in Redis: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// Exists implements cache.Cache.Exists.
func (r *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key in Redis: %w", err)
	}
	return n > 0, nil
}

var _ cache.Cache = (*Cache)(nil)
