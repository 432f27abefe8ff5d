package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/domain"
)

func TestHandleCreateOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	successOrder := domain.Order{
		ID:          "order-123",
		HoldID:      "hold-1",
		ProductID:   "prod-1",
		Quantity:    3,
		TotalAmount: decimal.RequireFromString("59.97"),
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
	}

	tests := []struct {
		name           string
		method         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"hold_id":"hold-1"}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"total_amount":"59.97"`,
		},
		{
			name:           "invalid json",
			body:           `{"hold_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing hold id",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "hold not found",
			body:           `{"hold_id":"hold-1"}`,
			serviceErr:     domain.ErrHoldNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "hold already used",
			body:           `{"hold_id":"hold-1"}`,
			serviceErr:     domain.ErrHoldAlreadyUsed,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "hold expired",
			body:           `{"hold_id":"hold-1"}`,
			serviceErr:     domain.ErrHoldExpired,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "order already exists",
			body:           `{"hold_id":"hold-1"}`,
			serviceErr:     domain.ErrOrderAlreadyExists,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "internal error",
			body:           `{"hold_id":"hold-1"}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "method not allowed",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubOrderService{
				order: successOrder,
				err:   tt.serviceErr,
			}
			method := tt.method
			if method == "" {
				method = http.MethodPost
			}
			req := httptest.NewRequest(method, "/orders", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			handler := HandleCreateOrder(svc)
			handler.ServeHTTP(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, res.StatusCode)
			}
			if tt.expectedSubstr != "" {
				body := rec.Body.String()
				if !strings.Contains(body, tt.expectedSubstr) {
					t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, body)
				}
			}
		})
	}
}

type stubOrderService struct {
	order domain.Order
	err   error
}

func (s *stubOrderService) CreateOrder(_ context.Context, _ string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return s.order, nil
}
