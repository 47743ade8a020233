package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheHelper provides common caching operations under a key prefix
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

// CacheConfig defines cache configuration for different data types
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Student progress changes on every lesson completion, keep it short
	ProgressCacheConfig = CacheConfig{
		TTL:    2 * time.Minute,
		Prefix: "progress:",
	}
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

func (c *CacheHelper) GetCacheKey(key string) string {
	return fmt.Sprintf("%s%s", c.prefix, key)
}

// Get retrieves and unmarshals data from cache
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}

	return nil
}

// Set marshals and stores data in cache
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	return c.client.Set(ctx, c.GetCacheKey(key), data, ttl).Err()
}

// Delete removes keys from cache
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	cacheKeys := make([]string, len(keys))
	for i, key := range keys {
		cacheKeys[i] = c.GetCacheKey(key)
	}

	return c.client.Del(ctx, cacheKeys...).Err()
}

// CacheOrExecute implements cache-aside. Cache failures never fail the call.
// A value fetched before an invalidation may still be written afterwards;
// use VersionedCacheOrExecute where that matters.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.InfoContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetchFunc()
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		slog.ErrorContext(ctx, "Cache set error", "error", err, "key", key)
	}

	return decodeInto(value, dest)
}

// generationTTL must outlive every entry stored under a generation
const generationTTL = 24 * time.Hour

func (c *CacheHelper) generationKey(key string) string {
	return c.GetCacheKey("gen:" + key)
}

func versionedKey(key string, generation int64) string {
	return fmt.Sprintf("%s@%d", key, generation)
}

// Generation returns the invalidation counter of key, 0 if never invalidated
func (c *CacheHelper) Generation(ctx context.Context, key string) (int64, error) {
	if c.client == nil {
		return 0, ErrCacheNotAvailable
	}

	gen, err := c.client.Get(ctx, c.generationKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

// Invalidate bumps the generation of each key. Readers move to the new
// generation; the superseded entry is deleted.
func (c *CacheHelper) Invalidate(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}

	for _, key := range keys {
		var incr *redis.IntCmd
		_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, c.generationKey(key))
			pipe.Expire(ctx, c.generationKey(key), generationTTL)
			return nil
		})
		if err != nil {
			return fmt.Errorf("cache invalidate error: %w", err)
		}

		if err := c.Delete(ctx, versionedKey(key, incr.Val()-1)); err != nil {
			return err
		}
	}
	return nil
}

// VersionedCacheOrExecute is CacheOrExecute over the current generation of
// key. The generation is read before fetching, so a value fetched while an
// invalidation runs is stored under the old generation and never served.
func (c *CacheHelper) VersionedCacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func() (interface{}, error)) error {
	gen, err := c.Generation(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheNotAvailable) {
			slog.InfoContext(ctx, "Cache generation unavailable, bypassing cache", "error", err, "key", key)
		}
		value, err := fetchFunc()
		if err != nil {
			return err
		}
		return decodeInto(value, dest)
	}

	return c.CacheOrExecute(ctx, versionedKey(key, gen), dest, ttl, fetchFunc)
}

func decodeInto(value, dest interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// CacheManager holds the cache helpers used by the services
type CacheManager struct {
	Progress *CacheHelper

	client *redis.Client
}

func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		Progress: NewCacheHelper(client, ProgressCacheConfig.Prefix),
		client:   client,
	}
}

// HealthCheck verifies cache connectivity
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}

	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}

	return nil
}
