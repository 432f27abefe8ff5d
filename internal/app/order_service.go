package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	MarkHoldUsed(ctx context.Context, holdID string) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetOrderByHoldID(ctx context.Context, holdID string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	DecrementStock(ctx context.Context, productID string, quantity int) error
	ListWebhooksByOrderID(ctx context.Context, orderID string) ([]domain.PaymentWebhook, error)
}

// OrderService converts a valid hold into an order exactly once and owns the
// terminal pending->paid / pending->cancelled transitions. The hold's
// is_used flip happens under the hold row lock, so a concurrent order
// creation and sweep reclamation cannot both succeed.
type OrderService struct {
	repo  OrderRepository
	cache AvailabilityCache
	clock clock.Clock
	log   zerolog.Logger
	newID func() string
}

func NewOrderService(repo OrderRepository, cache AvailabilityCache, clk clock.Clock, log zerolog.Logger, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:  repo,
		cache: cache,
		clock: clk,
		log:   log,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderServiceOption func(*OrderService)

// WithOrderIDGenerator overrides order id generation.
func WithOrderIDGenerator(fn func() string) OrderServiceOption {
	return func(s *OrderService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// CreateOrder converts the hold into a pending order, copying quantity and
// pricing the total at the current unit price. An expired hold is reclaimed
// on the spot: the hold is marked used and its stock freed even though the
// order itself is refused.
func (s *OrderService) CreateOrder(ctx context.Context, holdID string) (domain.Order, error) {
	now := s.clock.Now()
	var result domain.Order
	var opErr error

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}

		if hold.IsUsed {
			return domain.ErrHoldAlreadyUsed
		}

		if hold.IsExpired(now) {
			if err := s.repo.MarkHoldUsed(txCtx, holdID); err != nil {
				return err
			}
			invalidateAvailability(txCtx, s.cache, s.log, hold.ProductID)
			s.log.Info().
				Str("hold_id", holdID).
				Str("product_id", hold.ProductID).
				Msg("expired hold reclaimed during order creation")
			// Returning nil commits the reclaim; the conflict is reported
			// after the transaction instead of rolling it back.
			opErr = domain.ErrHoldExpired
			return nil
		}

		existing, err := s.repo.GetOrderByHoldID(txCtx, holdID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrOrderAlreadyExists
		}

		product, err := s.repo.GetProduct(txCtx, hold.ProductID)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:          s.newID(),
			HoldID:      holdID,
			ProductID:   hold.ProductID,
			Quantity:    hold.Quantity,
			TotalAmount: product.Price.Mul(decimal.NewFromInt(int64(hold.Quantity))),
			Status:      domain.OrderStatusPending,
			CreatedAt:   now,
		}
		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := s.repo.MarkHoldUsed(txCtx, holdID); err != nil {
			return err
		}

		// The pending order now reserves the quantity instead of the hold;
		// the sum is unchanged but the cached value is stale.
		invalidateAvailability(txCtx, s.cache, s.log, hold.ProductID)

		s.log.Info().
			Str("order_id", order.ID).
			Str("hold_id", holdID).
			Str("product_id", hold.ProductID).
			Int("quantity", order.Quantity).
			Str("total_amount", order.TotalAmount.String()).
			Msg("order created")

		if err := s.applyStoredWebhooks(txCtx, &order); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if opErr != nil {
		return domain.Order{}, opErr
	}
	return result, nil
}

// MarkAsPaid finalizes a pending order and applies the single irreversible
// stock deduction. Calling it on an order that already left pending is a
// no-op, which makes webhook re-delivery after settlement safe.
func (s *OrderService) MarkAsPaid(ctx context.Context, orderID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.IsPending() {
			return nil
		}

		if err := s.repo.UpdateOrderStatus(txCtx, orderID, domain.OrderStatusPaid); err != nil {
			return err
		}
		if err := s.repo.DecrementStock(txCtx, order.ProductID, order.Quantity); err != nil {
			return err
		}
		invalidateAvailability(txCtx, s.cache, s.log, order.ProductID)

		s.log.Info().
			Str("order_id", orderID).
			Str("product_id", order.ProductID).
			Int("quantity", order.Quantity).
			Msg("order paid, total stock decremented")
		return nil
	})
}

// Cancel moves a pending order to cancelled. Total stock is untouched since
// it was never decremented; only the cached availability changes.
func (s *OrderService) Cancel(ctx context.Context, orderID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.IsPending() {
			return nil
		}

		if err := s.repo.UpdateOrderStatus(txCtx, orderID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		invalidateAvailability(txCtx, s.cache, s.log, order.ProductID)

		s.log.Info().
			Str("order_id", orderID).
			Str("product_id", order.ProductID).
			Msg("order cancelled")
		return nil
	})
}

// applyStoredWebhooks replays payment notifications that arrived before the
// order existed. The first applicable webhook settles the order; later ones
// see a non-pending order and no-op.
func (s *OrderService) applyStoredWebhooks(ctx context.Context, order *domain.Order) error {
	webhooks, err := s.repo.ListWebhooksByOrderID(ctx, order.ID)
	if err != nil {
		return err
	}

	for _, wh := range webhooks {
		if !order.IsPending() {
			break
		}
		switch wh.Status {
		case domain.WebhookStatusSuccess:
			if err := s.MarkAsPaid(ctx, order.ID); err != nil {
				return err
			}
			order.Status = domain.OrderStatusPaid
		case domain.WebhookStatusFailed:
			if err := s.Cancel(ctx, order.ID); err != nil {
				return err
			}
			order.Status = domain.OrderStatusCancelled
		}
		s.log.Info().
			Str("order_id", order.ID).
			Str("webhook_id", wh.ID).
			Str("status", string(order.Status)).
			Msg("order settled from stored webhook")
	}
	return nil
}
