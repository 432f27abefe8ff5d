package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jvaldes/stockhold/internal/domain"
)

// WebhookRepository backs webhook ingestion. The unique index on
// idempotency_key enforces exactly-once recording at the storage level.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *WebhookRepository) FindWebhookByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentWebhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM payment_webhooks WHERE idempotency_key = $1`

	webhook, err := scanWebhook(queryRow(ctx, r.pool, q, idempotencyKey))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find webhook by key: %w", err)
	}
	return &webhook, nil
}

// CreateWebhook inserts the record unless the idempotency key is already
// taken. The duplicate case uses ON CONFLICT DO NOTHING rather than letting
// the unique violation fire: a raised 23505 would abort the surrounding
// transaction and the caller still needs to re-read the winning record in it.
func (r *WebhookRepository) CreateWebhook(ctx context.Context, webhook domain.PaymentWebhook) error {
	const stmt = `
INSERT INTO payment_webhooks (id, idempotency_key, order_id, status, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING`

	var payload any
	if webhook.Payload != nil {
		payload = []byte(webhook.Payload)
	}

	tag, err := exec(ctx, r.pool, stmt,
		webhook.ID,
		webhook.IdempotencyKey,
		webhook.OrderID,
		webhook.Status,
		payload,
		webhook.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateWebhook
	}
	return nil
}

func (r *WebhookRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(queryRow(ctx, r.pool, q, orderID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}
