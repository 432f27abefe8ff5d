package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product carries the authoritative total stock count. Stock only ever
// decreases, and only through the final-sale deduction; holds and pending
// orders reserve against it without touching it.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
}
