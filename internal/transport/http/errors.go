package http

import (
	"encoding/json"
	"net/http"

	"github.com/jvaldes/stockhold/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeInvalidPrice        = "invalid_price"
	codeInvalidStock        = "invalid_stock"
	codeProductNameRequired = "product_name_required"
	codeProductSKURequired  = "product_sku_required"
	codeProductSKUExists    = "product_sku_exists"
	codeProductNotFound     = "product_not_found"
	codeHoldNotFound        = "hold_not_found"
	codeOrderNotFound       = "order_not_found"
	codeInsufficientStock   = "insufficient_stock"
	codeHoldAlreadyUsed     = "hold_already_used"
	codeHoldExpired         = "hold_expired"
	codeOrderAlreadyExists  = "order_already_exists"
	codeIdempotencyRequired = "idempotency_key_required"
	codeInvalidStatus       = "invalid_status"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain sentinel errors onto stable HTTP codes.
// Anything unrecognized is an internal failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrInvalidQuantity:
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case domain.ErrInvalidPrice:
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case domain.ErrInvalidStock:
		writeError(w, http.StatusBadRequest, codeInvalidStock, err.Error())
	case domain.ErrProductNameRequired:
		writeError(w, http.StatusBadRequest, codeProductNameRequired, err.Error())
	case domain.ErrProductSKURequired:
		writeError(w, http.StatusBadRequest, codeProductSKURequired, err.Error())
	case domain.ErrIdempotencyKeyRequired:
		writeError(w, http.StatusBadRequest, codeIdempotencyRequired, err.Error())
	case domain.ErrInvalidWebhookStatus:
		writeError(w, http.StatusBadRequest, codeInvalidStatus, err.Error())
	case domain.ErrProductNotFound:
		writeError(w, http.StatusNotFound, codeProductNotFound, err.Error())
	case domain.ErrHoldNotFound:
		writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
	case domain.ErrOrderNotFound:
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case domain.ErrInsufficientStock:
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case domain.ErrHoldAlreadyUsed:
		writeError(w, http.StatusConflict, codeHoldAlreadyUsed, err.Error())
	case domain.ErrHoldExpired:
		writeError(w, http.StatusConflict, codeHoldExpired, err.Error())
	case domain.ErrOrderAlreadyExists:
		writeError(w, http.StatusConflict, codeOrderAlreadyExists, err.Error())
	case domain.ErrProductSKUExists:
		writeError(w, http.StatusConflict, codeProductSKUExists, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
