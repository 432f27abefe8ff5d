package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/app"
	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
	"github.com/jvaldes/stockhold/internal/storage/postgres"
	"github.com/jvaldes/stockhold/internal/testutil"
)

// Walks the whole reservation flow over HTTP against a real database:
// reserve a hold, convert it to an order, settle it with a payment webhook
// and replay the webhook.
func TestReservationFlow_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	log := zerolog.Nop()
	clk := clock.NewSystem()
	cache := testutil.NewMemoryCache()

	stockSvc := app.NewStockService(postgres.NewStockRepository(pool), cache, clk, log)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), cache, clk, log)
	webhookSvc := app.NewWebhookService(postgres.NewWebhookRepository(pool), orderSvc, clk, log)

	productID := testutil.InsertProduct(t, ctx, pool, "Widget", decimal.RequireFromString("19.99"), 10)

	// Reserve.
	holdBody := fmt.Sprintf(`{"product_id":"%s","quantity":3}`, productID)
	rec := httptest.NewRecorder()
	HandleCreateHold(stockSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBufferString(holdBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("reserve: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var hold holdResponse
	if err := json.NewDecoder(rec.Body).Decode(&hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}

	available, err := stockSvc.Available(ctx, productID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if available != 7 {
		t.Fatalf("expected availability 7 after reserve, got %d", available)
	}

	// Convert to an order.
	orderBody := fmt.Sprintf(`{"hold_id":"%s"}`, hold.ID)
	rec = httptest.NewRecorder()
	HandleCreateOrder(orderSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var order orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.TotalAmount != "59.97" {
		t.Fatalf("expected total 59.97, got %s", order.TotalAmount)
	}

	// Reusing the hold conflicts.
	rec = httptest.NewRecorder()
	HandleCreateOrder(orderSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(orderBody)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("reused hold: expected 409, got %d", rec.Code)
	}

	// Payment succeeds.
	webhookBody := fmt.Sprintf(`{"idempotency_key":"pay-1","status":"success","order_id":"%s"}`, order.ID)
	rec = httptest.NewRecorder()
	HandlePaymentWebhook(webhookSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(webhookBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var delivery paymentWebhookResponse
	if err := json.NewDecoder(rec.Body).Decode(&delivery); err != nil {
		t.Fatalf("decode webhook: %v", err)
	}
	if delivery.AlreadyProcessed {
		t.Fatalf("expected fresh delivery")
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, order.ID).Scan(&status); err != nil {
		t.Fatalf("query order status: %v", err)
	}
	if status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected order paid, got %s", status)
	}

	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected stock 7 after payment, got %d", stock)
	}

	// Replay the same webhook. The order and stock stay put.
	rec = httptest.NewRecorder()
	HandlePaymentWebhook(webhookSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(webhookBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook replay: expected 200, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&delivery); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if !delivery.AlreadyProcessed {
		t.Fatalf("expected replay to report already processed")
	}

	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected stock unchanged on replay, got %d", stock)
	}
}

// A success webhook that arrives before its order exists is retained and
// applied when the order is created.
func TestWebhookBeforeOrder_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	log := zerolog.Nop()
	clk := clock.NewSystem()
	cache := testutil.NewMemoryCache()

	orderID := "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), cache, clk, log,
		app.WithOrderIDGenerator(func() string { return orderID }))
	stockSvc := app.NewStockService(postgres.NewStockRepository(pool), cache, clk, log)
	webhookSvc := app.NewWebhookService(postgres.NewWebhookRepository(pool), orderSvc, clk, log)

	productID := testutil.InsertProduct(t, ctx, pool, "Widget", decimal.RequireFromString("5.00"), 10)

	hold, err := stockSvc.Reserve(ctx, app.ReserveInput{ProductID: productID, Quantity: 2})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Webhook lands first.
	webhookBody := fmt.Sprintf(`{"idempotency_key":"early-1","status":"success","order_id":"%s"}`, orderID)
	rec := httptest.NewRecorder()
	HandlePaymentWebhook(webhookSvc).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString(webhookBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("early webhook: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Order creation replays the stored webhook and settles immediately.
	order, err := orderSvc.CreateOrder(ctx, hold.ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected order settled on creation, got %s", order.Status)
	}

	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 8 {
		t.Fatalf("expected stock 8, got %d", stock)
	}
}
