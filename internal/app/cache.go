package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AvailabilityCache memoizes computed available-stock values per product.
// It is best effort and never a source of truth: a failing cache degrades to
// a miss, and invalidation is always deletion, never an in-place recompute,
// so a value computed outside the product row lock can never be cached.
type AvailabilityCache interface {
	Get(ctx context.Context, productID string) (int, bool, error)
	Set(ctx context.Context, productID string, available int, ttl time.Duration) error
	Delete(ctx context.Context, productID string) error
}

func invalidateAvailability(ctx context.Context, cache AvailabilityCache, log zerolog.Logger, productID string) {
	if err := cache.Delete(ctx, productID); err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("availability cache invalidation failed")
	}
}
