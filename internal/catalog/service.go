package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type queryProvider interface {
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	CountProducts(ctx context.Context, search string, onlyActive bool) (int, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, id pgtype.UUID) error
	ToggleProductStatus(ctx context.Context, id pgtype.UUID) (db.Product, error)
}

// Service orchestrates product catalog queries, validation, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	validate     *validator.Validate
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	Validate     *validator.Validate
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	validate := cfg.Validate
	if validate == nil {
		validate = validator.New()
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		validate:     validate,
		logger:       cfg.Logger,
		defaultLimit: limit,
		maxLimit:     maxLimit,
	}
}

// Product is the API representation of a catalog row.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListParams captures filters for the product listing.
type ListParams struct {
	Search     string
	OnlyActive bool
	Page       int
	Limit      int
}

// ListResult pairs the page of products with the total row count.
type ListResult struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// List returns a page of products, served from cache when possible.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = s.defaultLimit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}

	key := fmt.Sprintf("catalog:list:q=%s:active=%t:page=%d:limit=%d", params.Search, params.OnlyActive, params.Page, params.Limit)
	var cached ListResult
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}

	rows, err := s.queries.ListProducts(ctx, db.ListProductsParams{
		Search:     params.Search,
		OnlyActive: params.OnlyActive,
		Limit:      params.Limit,
		Offset:     (params.Page - 1) * params.Limit,
	})
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.queries.CountProducts(ctx, params.Search, params.OnlyActive)
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{Items: make([]Product, 0, len(rows)), Total: total, Page: params.Page, Limit: params.Limit}
	for _, row := range rows {
		result.Items = append(result.Items, toProduct(row))
	}
	if err := s.cache.SetJSON(ctx, key, result); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	return result, nil
}

// CreateParams is the validated create payload.
type CreateParams struct {
	Name     string          `json:"name" validate:"required,min=1,max=200"`
	Category string          `json:"category" validate:"max=100"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"gte=0"`
}

// Create validates the payload and inserts a new product.
func (s *Service) Create(ctx context.Context, params CreateParams) (Product, error) {
	if err := s.validate.Struct(params); err != nil {
		return Product{}, badRequest("payload", "invalid product payload", err)
	}
	if params.Price.IsNegative() {
		return Product{}, badRequest("price", "price cannot be negative", nil)
	}
	row, err := s.queries.CreateProduct(ctx, db.CreateProductParams{
		Name:     params.Name,
		Category: params.Category,
		Price:    params.Price.Round(2),
		Stock:    params.Stock,
	})
	if err != nil {
		return Product{}, err
	}
	return toProduct(row), nil
}

// Delete removes a product by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	pid, err := db.UUIDFromString(id)
	if err != nil {
		return badRequest("id", "product id must be a valid UUID", err)
	}
	if err := s.queries.DeleteProduct(ctx, pid); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return notFound()
		}
		return err
	}
	return nil
}

// ToggleStatus flips a product's active flag.
func (s *Service) ToggleStatus(ctx context.Context, id string) (Product, error) {
	pid, err := db.UUIDFromString(id)
	if err != nil {
		return Product{}, badRequest("id", "product id must be a valid UUID", err)
	}
	row, err := s.queries.ToggleProductStatus(ctx, pid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Product{}, notFound()
		}
		return Product{}, err
	}
	return toProduct(row), nil
}

func toProduct(row db.Product) Product {
	return Product{
		ID:        db.UUIDString(row.ID),
		Name:      row.Name,
		Category:  row.Category,
		Price:     row.Price,
		Stock:     row.Stock,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func notFound() *common.AppError {
	return &common.AppError{Code: "PRODUCT_NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound}
}
