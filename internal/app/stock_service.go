package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
)

type StockRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
	SumPendingOrders(ctx context.Context, productID string) (int, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
}

// StockService owns the availability computation and the hold-reservation
// path, the only path that may allocate stock. Concurrent reservations for
// one product serialize on the product row lock, so the second always
// observes the first's committed hold.
type StockService struct {
	repo     StockRepository
	cache    AvailabilityCache
	clock    clock.Clock
	log      zerolog.Logger
	holdTTL  time.Duration
	cacheTTL time.Duration
	newID    func() string
}

const (
	defaultHoldTTL  = 2 * time.Minute
	defaultCacheTTL = 60 * time.Second
)

func NewStockService(repo StockRepository, cache AvailabilityCache, clk clock.Clock, log zerolog.Logger, opts ...StockServiceOption) *StockService {
	svc := &StockService{
		repo:     repo,
		cache:    cache,
		clock:    clk,
		log:      log,
		holdTTL:  defaultHoldTTL,
		cacheTTL: defaultCacheTTL,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type StockServiceOption func(*StockService)

// WithHoldTTL overrides the reservation window for new holds.
func WithHoldTTL(d time.Duration) StockServiceOption {
	return func(s *StockService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithCacheTTL overrides how long computed availability stays cached.
func WithCacheTTL(d time.Duration) StockServiceOption {
	return func(s *StockService) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithStockIDGenerator overrides hold id generation.
func WithStockIDGenerator(fn func() string) StockServiceOption {
	return func(s *StockService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// stockSnapshot is a consistent view of a product's reservations taken under
// the product row lock.
type stockSnapshot struct {
	product       domain.Product
	activeHolds   int
	pendingOrders int
}

// available is max(0, stock - active holds - pending orders); never negative
// even if bookkeeping drifts.
func (s stockSnapshot) available() int {
	available := s.product.Stock - s.activeHolds - s.pendingOrders
	if available < 0 {
		return 0
	}
	return available
}

// Available returns the product's available stock for display reads. It
// serves from the cache when possible and otherwise computes under the
// product row lock before caching the result.
func (s *StockService) Available(ctx context.Context, productID string) (int, error) {
	if cached, ok, err := s.cache.Get(ctx, productID); err != nil {
		s.log.Warn().Err(err).Str("product_id", productID).Msg("availability cache read failed")
	} else if ok {
		return cached, nil
	}

	var available int
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		snap, err := s.snapshotLocked(txCtx, productID)
		if err != nil {
			return err
		}
		available = snap.available()
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.cache.Set(ctx, productID, available, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("product_id", productID).Msg("availability cache write failed")
	}
	return available, nil
}

type ReserveInput struct {
	ProductID string
	Quantity  int
}

// Reserve creates a hold against available stock or reports
// ErrInsufficientStock without writing anything. The whole unit runs inside
// one transaction with the product row locked.
func (s *StockService) Reserve(ctx context.Context, in ReserveInput) (domain.Hold, error) {
	if in.Quantity <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	var result domain.Hold

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		snap, err := s.snapshotLocked(txCtx, in.ProductID)
		if err != nil {
			return err
		}

		available := snap.available()
		if available < in.Quantity {
			s.log.Warn().
				Str("product_id", in.ProductID).
				Int("requested", in.Quantity).
				Int("available", available).
				Int("reserved_by_holds", snap.activeHolds).
				Int("reserved_by_orders", snap.pendingOrders).
				Msg("insufficient stock for hold")
			return domain.ErrInsufficientStock
		}

		hold := domain.Hold{
			ID:        s.newID(),
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			ExpiresAt: now.Add(s.holdTTL),
			IsUsed:    false,
			CreatedAt: now,
		}
		if err := s.repo.CreateHold(txCtx, hold); err != nil {
			return err
		}

		invalidateAvailability(txCtx, s.cache, s.log, in.ProductID)

		s.log.Info().
			Str("hold_id", hold.ID).
			Str("product_id", in.ProductID).
			Int("quantity", in.Quantity).
			Int("available_after", available-in.Quantity).
			Time("expires_at", hold.ExpiresAt).
			Msg("hold created")

		result = hold
		return nil
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return result, nil
}

func (s *StockService) snapshotLocked(ctx context.Context, productID string) (stockSnapshot, error) {
	product, err := s.repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return stockSnapshot{}, err
	}

	activeQty, err := s.repo.SumActiveHolds(ctx, productID, s.clock.Now())
	if err != nil {
		return stockSnapshot{}, err
	}
	pendingQty, err := s.repo.SumPendingOrders(ctx, productID)
	if err != nil {
		return stockSnapshot{}, err
	}

	return stockSnapshot{
		product:       product,
		activeHolds:   activeQty,
		pendingOrders: pendingQty,
	}, nil
}
