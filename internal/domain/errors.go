package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInsufficientStock      = errors.New("insufficient stock available")
	ErrHoldAlreadyUsed        = errors.New("hold has already been used")
	ErrHoldExpired            = errors.New("hold has expired")
	ErrOrderAlreadyExists     = errors.New("order already exists for this hold")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidID              = errors.New("invalid id")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrDuplicateWebhook       = errors.New("webhook already recorded")
	ErrInvalidWebhookStatus   = errors.New("invalid webhook status")
	ErrProductNameRequired    = errors.New("product name required")
	ErrProductSKURequired     = errors.New("product sku required")
	ErrProductSKUExists       = errors.New("product sku already exists")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidStock           = errors.New("invalid stock")
)
