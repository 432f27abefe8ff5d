package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jvaldes/stockhold/internal/domain"
)

// memStore is an in-memory stand-in for the postgres repositories so the
// services can be exercised without a database. It implements
// StockRepository, OrderRepository, WebhookRepository and ExpiryRepository
// over the same state, which lets the webhook/order interplay be tested
// end to end.
type memStore struct {
	products map[string]domain.Product
	holds    map[string]domain.Hold
	orders   map[string]domain.Order
	webhooks []domain.PaymentWebhook

	// holdErrs forces GetHoldForUpdate failures for specific holds.
	holdErrs map[string]error
	// webhookRace, when set, makes the next CreateWebhook behave as if a
	// concurrent duplicate insert won: the seeded record lands and the
	// unique violation is reported.
	webhookRace *domain.PaymentWebhook
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]domain.Product),
		holds:    make(map[string]domain.Hold),
		orders:   make(map[string]domain.Order),
		holdErrs: make(map[string]error),
	}
}

func (m *memStore) addProduct(p domain.Product) { m.products[p.ID] = p }
func (m *memStore) addHold(h domain.Hold)       { m.holds[h.ID] = h }
func (m *memStore) addOrder(o domain.Order)     { m.orders[o.ID] = o }

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memStore) CreateProduct(_ context.Context, product domain.Product) error {
	for _, existing := range m.products {
		if existing.SKU == product.SKU {
			return domain.ErrProductSKUExists
		}
	}
	m.products[product.ID] = product
	return nil
}

func (m *memStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetProductForUpdate(_ context.Context, productID string) (domain.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *memStore) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	return m.GetProductForUpdate(ctx, productID)
}

func (m *memStore) SumActiveHolds(_ context.Context, productID string, now time.Time) (int, error) {
	total := 0
	for _, h := range m.holds {
		if h.ProductID == productID && h.IsActive(now) {
			total += h.Quantity
		}
	}
	return total, nil
}

func (m *memStore) SumPendingOrders(_ context.Context, productID string) (int, error) {
	total := 0
	for _, o := range m.orders {
		if o.ProductID == productID && o.Status == domain.OrderStatusPending {
			total += o.Quantity
		}
	}
	return total, nil
}

func (m *memStore) CreateHold(_ context.Context, hold domain.Hold) error {
	m.holds[hold.ID] = hold
	return nil
}

func (m *memStore) GetHoldForUpdate(_ context.Context, holdID string) (domain.Hold, error) {
	if err := m.holdErrs[holdID]; err != nil {
		return domain.Hold{}, err
	}
	h, ok := m.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (m *memStore) MarkHoldUsed(_ context.Context, holdID string) error {
	h, ok := m.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	h.IsUsed = true
	m.holds[holdID] = h
	return nil
}

func (m *memStore) GetOrderByHoldID(_ context.Context, holdID string) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.HoldID == holdID {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateOrder(_ context.Context, order domain.Order) error {
	for _, o := range m.orders {
		if o.HoldID == order.HoldID {
			return domain.ErrOrderAlreadyExists
		}
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memStore) GetOrderForUpdate(_ context.Context, orderID string) (domain.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) error {
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *memStore) DecrementStock(_ context.Context, productID string, quantity int) error {
	p, ok := m.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock -= quantity
	m.products[productID] = p
	return nil
}

func (m *memStore) ListWebhooksByOrderID(_ context.Context, orderID string) ([]domain.PaymentWebhook, error) {
	var out []domain.PaymentWebhook
	for _, wh := range m.webhooks {
		if wh.OrderID != nil && *wh.OrderID == orderID {
			out = append(out, wh)
		}
	}
	return out, nil
}

func (m *memStore) FindWebhookByKey(_ context.Context, key string) (*domain.PaymentWebhook, error) {
	for i := range m.webhooks {
		if m.webhooks[i].IdempotencyKey == key {
			wh := m.webhooks[i]
			return &wh, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateWebhook(_ context.Context, webhook domain.PaymentWebhook) error {
	if m.webhookRace != nil {
		m.webhooks = append(m.webhooks, *m.webhookRace)
		m.webhookRace = nil
		return domain.ErrDuplicateWebhook
	}
	for _, wh := range m.webhooks {
		if wh.IdempotencyKey == webhook.IdempotencyKey {
			return domain.ErrDuplicateWebhook
		}
	}
	m.webhooks = append(m.webhooks, webhook)
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) ListExpiredHolds(_ context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error) {
	var candidates []domain.Hold
	for _, h := range m.holds {
		if !h.IsUsed && h.IsExpired(now) && h.ID > afterID {
			candidates = append(candidates, h)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// fakeCache records cache traffic and can be told to fail.
type fakeCache struct {
	values  map[string]int
	deletes []string

	getErr error
	setErr error
	delErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]int)}
}

func (c *fakeCache) Get(_ context.Context, productID string) (int, bool, error) {
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	v, ok := c.values[productID]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, productID string, available int, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.values[productID] = available
	return nil
}

func (c *fakeCache) Delete(_ context.Context, productID string) error {
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.values, productID)
	c.deletes = append(c.deletes, productID)
	return nil
}

// seqIDs returns a deterministic id generator for tests.
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
