package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
)

type CatalogRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CatalogService manages the product records everything else reserves
// against.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
	newID func() string
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock, opts ...CatalogServiceOption) *CatalogService {
	svc := &CatalogService{
		repo:  repo,
		clock: clk,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CatalogServiceOption func(*CatalogService)

// WithProductIDGenerator overrides product id generation.
func WithProductIDGenerator(fn func() string) CatalogServiceOption {
	return func(s *CatalogService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

type CreateProductInput struct {
	Name  string
	SKU   string
	Price decimal.Decimal
	Stock int
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	if in.Name == "" {
		return domain.Product{}, domain.ErrProductNameRequired
	}
	if in.SKU == "" {
		return domain.Product{}, domain.ErrProductSKURequired
	}
	if in.Price.IsNegative() {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if in.Stock < 0 {
		return domain.Product{}, domain.ErrInvalidStock
	}

	product := domain.Product{
		ID:        s.newID(),
		Name:      in.Name,
		SKU:       in.SKU,
		Price:     in.Price,
		Stock:     in.Stock,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.ErrInvalidID
	}
	return s.repo.GetProduct(ctx, productID)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}
