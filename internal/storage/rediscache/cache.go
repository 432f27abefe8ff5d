package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const availableStockKeyPrefix = "product:"

// Cache memoizes computed availability per product in Redis with a short
// TTL. Misses and Redis failures both fall through to the locked database
// computation; the cache never stands in for the store.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, productID string) (int, bool, error) {
	value, err := c.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

func (c *Cache) Set(ctx context.Context, productID string, available int, ttl time.Duration) error {
	if err := c.client.Set(ctx, stockKey(productID), available, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, productID string) error {
	if err := c.client.Del(ctx, stockKey(productID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func stockKey(productID string) string {
	return availableStockKeyPrefix + productID + ":available_stock"
}
