package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under "<prefix>:cache:<key>"
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// Predefined TTLs
const (
	TTLShort = 10 * time.Minute   // API responses
	TTLDaily = 24 * time.Hour     // feature rows
	TTLWeek  = 7 * 24 * time.Hour // sentiment scores (text never changes)
)

// scanBatch is the COUNT hint for DeletePrefix
const scanBatch = 200

// NewCache creates a cache helper. A disabled client turns every call into a miss/no-op.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get decodes a cached value into dest. A missing key is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON with a TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes one key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// DeletePrefix removes every key starting with keyPrefix (e.g. "features:")
// and returns how many were deleted
func (c *Cache) DeletePrefix(ctx context.Context, keyPrefix string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	rdb := c.client.Redis()
	deleted := 0
	iter := rdb.Scan(ctx, 0, c.key(keyPrefix)+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			n, err := rdb.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache delete prefix %s: %w", keyPrefix, err)
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan %s: %w", keyPrefix, err)
	}
	if len(batch) > 0 {
		n, err := rdb.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache delete prefix %s: %w", keyPrefix, err)
		}
		deleted += int(n)
	}
	return deleted, nil
}

// GetOrSet serves from cache or calls load and caches its result.
// Redis read/write failures degrade to calling load.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() (interface{}, error)) error {
	if found, err := c.Get(ctx, key, dest); err == nil && found {
		return nil
	}

	value, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	if c.client.Enabled() {
		_ = c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
	}

	return json.Unmarshal(data, dest)
}

// SentimentKey keys a scorer result by model and text digest
func SentimentKey(model, textDigest string) string {
	return fmt.Sprintf("sentiment:%s:%s", model, textDigest)
}

// FeaturesPrefix groups the per-ticker feature responses
const FeaturesPrefix = "features:"

// FeaturesKey keys the feature rows served for one ticker
func FeaturesKey(ticker string) string {
	return FeaturesPrefix + ticker
}
