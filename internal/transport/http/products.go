package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/app"
	"github.com/jvaldes/stockhold/internal/domain"
)

// ProductCatalog is the minimal interface needed to manage products.
type ProductCatalog interface {
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// AvailabilityReader computes how much of a product can still be reserved.
type AvailabilityReader interface {
	Available(ctx context.Context, productID string) (int, error)
}

// HandleProducts returns an HTTP handler for the products collection.
func HandleProducts(svc ProductCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			createProduct(w, r, svc)
		case http.MethodGet:
			listProducts(w, r, svc)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleProductByID returns an HTTP handler for a single product, including
// its computed available stock.
func HandleProductByID(svc ProductCatalog, stock AvailabilityReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		productID, ok := parseProductPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		available, err := stock.Available(r.Context(), productID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := productResponse{
			ID:             product.ID,
			Name:           product.Name,
			SKU:            product.SKU,
			Price:          product.Price.StringFixed(2),
			Stock:          product.Stock,
			AvailableStock: &available,
			CreatedAt:      product.CreatedAt,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func createProduct(w http.ResponseWriter, r *http.Request, svc ProductCatalog) {
	var req createProductRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeServiceError(w, domain.ErrInvalidPrice)
		return
	}

	product, err := svc.CreateProduct(r.Context(), app.CreateProductInput{
		Name:  req.Name,
		SKU:   req.SKU,
		Price: price,
		Stock: req.Stock,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := productResponse{
		ID:        product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Price:     product.Price.StringFixed(2),
		Stock:     product.Stock,
		CreatedAt: product.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

func listProducts(w http.ResponseWriter, r *http.Request, svc ProductCatalog) {
	products, err := svc.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:        p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price.StringFixed(2),
			Stock:     p.Stock,
			CreatedAt: p.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func parseProductPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return "", false
	}
	if parts[0] != "products" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createProductRequest struct {
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type productResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Price          string    `json:"price"`
	Stock          int       `json:"stock"`
	AvailableStock *int      `json:"available_stock,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
