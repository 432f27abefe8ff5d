package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is the confirmed purchase spawned by exactly one hold. Quantity and
// total amount are captured at creation and never change; status moves
// pending -> paid or pending -> cancelled and then stays there.
type Order struct {
	ID          string
	HoldID      string
	ProductID   string
	Quantity    int
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
}

func (o Order) IsPending() bool {
	return o.Status == OrderStatusPending
}
