package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jvaldes/stockhold/internal/domain"
)

// OrderRepository backs the order lifecycle: the locked hold read, order
// insertion guarded by the unique hold_id index, status transitions and the
// final stock decrement.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	q := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1 FOR UPDATE`
	hold, err := scanHold(queryRow(ctx, r.pool, q, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold for update: %w", err)
	}
	return hold, nil
}

func (r *OrderRepository) MarkHoldUsed(ctx context.Context, holdID string) error {
	const stmt = `UPDATE holds SET is_used = TRUE WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, holdID)
	if err != nil {
		return fmt.Errorf("mark hold used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

func (r *OrderRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(queryRow(ctx, r.pool, q, productID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Product{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r *OrderRepository) GetOrderByHoldID(ctx context.Context, holdID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE hold_id = $1`
	order, err := scanOrder(queryRow(ctx, r.pool, q, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by hold: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, hold_id, product_id, quantity, total_amount, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := exec(ctx, r.pool, stmt,
		order.ID,
		order.HoldID,
		order.ProductID,
		order.Quantity,
		order.TotalAmount,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		// The unique hold_id index is the storage-level at-most-one-order
		// guarantee; a losing racer lands here.
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(queryRow(ctx, r.pool, q, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order for update: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	const stmt = `UPDATE orders SET status = $2 WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// DecrementStock applies the final deduction. The UPDATE takes the product
// row lock itself, serializing with concurrent reservations.
func (r *OrderRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	const stmt = `UPDATE products SET stock = stock - $2 WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *OrderRepository) ListWebhooksByOrderID(ctx context.Context, orderID string) ([]domain.PaymentWebhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM payment_webhooks WHERE order_id = $1 ORDER BY created_at, id`

	rows, err := query(ctx, r.pool, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks by order: %w", err)
	}
	defer rows.Close()

	var webhooks []domain.PaymentWebhook
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list webhooks by order: %w", err)
	}
	return webhooks, nil
}
