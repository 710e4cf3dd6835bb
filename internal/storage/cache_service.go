package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheNamespace prefixes every key written by the service
const cacheNamespace = "analytics"

// CacheKeyType names the read model a cached value belongs to
type CacheKeyType string

const (
	// CacheKeyCategoryTotals caches category totals queries
	CacheKeyCategoryTotals CacheKeyType = "categories"
	// CacheKeyBalances caches balance history queries
	CacheKeyBalances CacheKeyType = "balances"
	// CacheKeySummaries caches financial summary queries
	CacheKeySummaries CacheKeyType = "summaries"
	// CacheKeyComposition caches net-worth compositions
	CacheKeyComposition CacheKeyType = "composition"
)

// CacheService provides JSON caching of query results on top of Redis
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// GenerateCacheKey generates a key for a user's query.
// Format: analytics:<type>:<user>:<sha256 of the query parameters>
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, userID string, params interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key params: %w", err)
	}
	sum := sha256.Sum256(raw)
	return strings.Join([]string{cacheNamespace, string(keyType), userID, hex.EncodeToString(sum[:12])}, ":"), nil
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get loads a cached value into dest. It reports false on a cache miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	keys, err := c.redis.ScanKeys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to find keys matching pattern: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to delete keys matching pattern: %w", err)
	}
	return len(keys), nil
}

// InvalidateUser drops every cached query of one user
func (c *CacheService) InvalidateUser(ctx context.Context, userID string) (int, error) {
	return c.InvalidatePattern(ctx, fmt.Sprintf("%s:*:%s:*", cacheNamespace, userID))
}

// InvalidateAll drops every cached query
func (c *CacheService) InvalidateAll(ctx context.Context) (int, error) {
	return c.InvalidatePattern(ctx, cacheNamespace+":*")
}

// TTL returns the configured TTL for this cache service
func (c *CacheService) TTL() time.Duration {
	return c.ttl
}
