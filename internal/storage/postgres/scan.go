package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/domain"
)

// Select column lists matching the scan helpers below. Price travels as text
// so the NUMERIC value round-trips through decimal without float drift.
const (
	productColumns = `id, name, sku, price::text, stock, created_at`
	holdColumns    = `id, product_id, quantity, expires_at, is_used, created_at`
	orderColumns   = `id, hold_id, product_id, quantity, total_amount::text, status, created_at`
	webhookColumns = `id, idempotency_key, order_id, status, payload, created_at`
)

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &price, &p.Stock, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price: %w", err)
	}
	p.Price = parsed
	return p, nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	if err := row.Scan(&h.ID, &h.ProductID, &h.Quantity, &h.ExpiresAt, &h.IsUsed, &h.CreatedAt); err != nil {
		return domain.Hold{}, err
	}
	return h, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var total string
	var status string
	if err := row.Scan(&o.ID, &o.HoldID, &o.ProductID, &o.Quantity, &total, &status, &o.CreatedAt); err != nil {
		return domain.Order{}, err
	}
	parsed, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse total_amount: %w", err)
	}
	o.TotalAmount = parsed
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func scanWebhook(row pgx.Row) (domain.PaymentWebhook, error) {
	var w domain.PaymentWebhook
	var status string
	var payload []byte
	if err := row.Scan(&w.ID, &w.IdempotencyKey, &w.OrderID, &status, &payload, &w.CreatedAt); err != nil {
		return domain.PaymentWebhook{}, err
	}
	w.Status = domain.WebhookStatus(status)
	w.Payload = payload
	return w, nil
}
