package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jvaldes/stockhold/internal/domain"
)

// OrderCreator is the minimal interface needed to convert a hold into an
// order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, holdID string) (domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for creating orders from holds.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.HoldID == "" {
			writeServiceError(w, domain.ErrInvalidID)
			return
		}

		order, err := svc.CreateOrder(r.Context(), req.HoldID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := orderResponse{
			ID:          order.ID,
			HoldID:      order.HoldID,
			ProductID:   order.ProductID,
			Quantity:    order.Quantity,
			TotalAmount: order.TotalAmount.StringFixed(2),
			Status:      string(order.Status),
			CreatedAt:   order.CreatedAt,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createOrderRequest struct {
	HoldID string `json:"hold_id"`
}

type orderResponse struct {
	ID          string    `json:"id"`
	HoldID      string    `json:"hold_id"`
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	TotalAmount string    `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
