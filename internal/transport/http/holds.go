package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jvaldes/stockhold/internal/app"
	"github.com/jvaldes/stockhold/internal/domain"
)

// StockReserver is the minimal interface needed to create a hold.
type StockReserver interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Hold, error)
}

// HandleCreateHold returns an HTTP handler for reserving stock.
func HandleCreateHold(svc StockReserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeServiceError(w, err)
			return
		}

		hold, err := svc.Reserve(r.Context(), app.ReserveInput{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := holdResponse{
			ID:        hold.ID,
			ProductID: hold.ProductID,
			Quantity:  hold.Quantity,
			ExpiresAt: hold.ExpiresAt,
			IsUsed:    hold.IsUsed,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createHoldRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (r createHoldRequest) validate() error {
	if r.ProductID == "" {
		return domain.ErrInvalidID
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

type holdResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
	IsUsed    bool      `json:"is_used"`
}
