package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jvaldes/stockhold/internal/app"
	"github.com/jvaldes/stockhold/internal/domain"
)

// WebhookIngester is the minimal interface needed to ingest payment
// notifications.
type WebhookIngester interface {
	Ingest(ctx context.Context, in app.IngestInput) (app.IngestResult, error)
}

// HandlePaymentWebhook returns an HTTP handler for payment-status
// notifications. Signature verification is assumed handled upstream.
func HandlePaymentWebhook(svc WebhookIngester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req paymentWebhookRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Ingest(r.Context(), app.IngestInput{
			IdempotencyKey: req.IdempotencyKey,
			Status:         domain.WebhookStatus(req.Status),
			OrderID:        req.OrderID,
			Payload:        req.Payload,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := paymentWebhookResponse{
			AlreadyProcessed: res.AlreadyProcessed,
			Webhook: webhookResponse{
				ID:             res.Webhook.ID,
				IdempotencyKey: res.Webhook.IdempotencyKey,
				OrderID:        res.Webhook.OrderID,
				Status:         string(res.Webhook.Status),
				CreatedAt:      res.Webhook.CreatedAt,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type paymentWebhookRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Status         string          `json:"status"`
	OrderID        *string         `json:"order_id"`
	Payload        json.RawMessage `json:"payload"`
}

type paymentWebhookResponse struct {
	AlreadyProcessed bool            `json:"already_processed"`
	Webhook          webhookResponse `json:"webhook"`
}

type webhookResponse struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotency_key"`
	OrderID        *string   `json:"order_id,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
