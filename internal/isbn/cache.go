package isbn

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores lookup results in Redis so repeated form prefills for popular
// editions skip the upstream call. A nil client disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached metadata and whether it was present.
func (c *Cache) Get(ctx context.Context, code string) (Metadata, bool, error) {
	if c == nil || c.client == nil {
		return Metadata{}, false, nil
	}
	payload, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, err
	}
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return Metadata{}, false, nil
	}
	return meta, true, nil
}

// Set stores metadata for the configured TTL.
func (c *Cache) Set(ctx context.Context, code string, meta Metadata) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(code), payload, c.ttl).Err()
}

func cacheKey(code string) string {
	return "isbn:" + code
}
