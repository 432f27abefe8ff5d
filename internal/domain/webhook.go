package domain

import (
	"encoding/json"
	"time"
)

type WebhookStatus string

const (
	WebhookStatusSuccess WebhookStatus = "success"
	WebhookStatusFailed  WebhookStatus = "failed"
)

// PaymentWebhook is an append-only record of a payment notification. The
// unique idempotency key is the duplicate-delivery defense: once a key is
// stored, every later delivery with that key is a replay. OrderID may point
// at an order that does not exist yet when the notification races ahead of
// order creation.
type PaymentWebhook struct {
	ID             string
	IdempotencyKey string
	OrderID        *string
	Status         WebhookStatus
	Payload        json.RawMessage
	CreatedAt      time.Time
}
