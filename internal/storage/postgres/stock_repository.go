package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jvaldes/stockhold/internal/domain"
)

// StockRepository backs the reservation path: the locked product read, the
// reservation sums and hold insertion.
type StockRepository struct {
	pool *pgxpool.Pool
}

func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

func (r *StockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *StockRepository) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	product, err := scanProduct(queryRow(ctx, r.pool, q, productID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Product{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product for update: %w", err)
	}
	return product, nil
}

func (r *StockRepository) SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error) {
	const q = `
SELECT COALESCE(SUM(quantity), 0)
FROM holds
WHERE product_id = $1 AND is_used = FALSE AND expires_at > $2`

	var total int
	if err := queryRow(ctx, r.pool, q, productID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active holds: %w", err)
	}
	return total, nil
}

func (r *StockRepository) SumPendingOrders(ctx context.Context, productID string) (int, error) {
	const q = `
SELECT COALESCE(SUM(quantity), 0)
FROM orders
WHERE product_id = $1 AND status = 'pending'`

	var total int
	if err := queryRow(ctx, r.pool, q, productID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum pending orders: %w", err)
	}
	return total, nil
}

func (r *StockRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO holds (id, product_id, quantity, expires_at, is_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := exec(ctx, r.pool, stmt,
		hold.ID,
		hold.ProductID,
		hold.Quantity,
		hold.ExpiresAt,
		hold.IsUsed,
		hold.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}
