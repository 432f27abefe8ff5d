package domain

import "time"

// Hold is a time-boxed, provisional claim on product stock. It counts against
// availability while active and becomes permanently inert once used, whether
// it was consumed by an order or reclaimed after expiry.
type Hold struct {
	ID        string
	ProductID string
	Quantity  int
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

func (h Hold) IsExpired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// IsActive reports whether the hold still reserves stock.
func (h Hold) IsActive(now time.Time) bool {
	return !h.IsUsed && h.ExpiresAt.After(now)
}
