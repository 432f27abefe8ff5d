package testutil

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process AvailabilityCache for tests that exercise the
// real services without a Redis instance. TTLs are recorded but not expired.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]int)}
}

func (c *MemoryCache) Get(_ context.Context, productID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[productID]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, productID string, available int, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[productID] = available
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, productID)
	return nil
}
