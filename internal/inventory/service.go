package inventory

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

// Stock status labels shown in the back-office inventory screen.
const (
	StatusInStock    = "In Stock"
	StatusLowStock   = "Low Stock"
	StatusOutOfStock = "Out of Stock"
)

type queryProvider interface {
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	CountProducts(ctx context.Context, search string, onlyActive bool) (int, error)
	SetProductStock(ctx context.Context, id pgtype.UUID, stock int) (db.Product, error)
}

// Service reads and adjusts stock levels with derived status labels.
type Service struct {
	queries           queryProvider
	lowStockThreshold int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries           queryProvider
	LowStockThreshold int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = 20
	}
	return &Service{queries: cfg.Queries, lowStockThreshold: threshold}
}

// Item is the inventory view of a product.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Status    string          `json:"status"`
}

// ListResult pairs the page of inventory items with the total row count.
type ListResult struct {
	Items []Item
	Total int
	Page  int
	Limit int
}

// List returns a page of inventory items with derived status.
func (s *Service) List(ctx context.Context, search string, page, limit int) (ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.queries.ListProducts(ctx, db.ListProductsParams{
		Search: search,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.queries.CountProducts(ctx, search, false)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: make([]Item, 0, len(rows)), Total: total, Page: page, Limit: limit}
	for _, row := range rows {
		result.Items = append(result.Items, s.toItem(row))
	}
	return result, nil
}

// UpdateStock sets the absolute stock level for a product.
func (s *Service) UpdateStock(ctx context.Context, productID string, stock int) (Item, error) {
	if stock < 0 {
		return Item{}, &common.AppError{Code: "BAD_REQUEST", Message: "stock cannot be negative", HTTPStatus: http.StatusBadRequest}
	}
	pid, err := db.UUIDFromString(productID)
	if err != nil {
		return Item{}, &common.AppError{Code: "BAD_REQUEST", Message: "product id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	row, err := s.queries.SetProductStock(ctx, pid, stock)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Item{}, &common.AppError{Code: "PRODUCT_NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound}
		}
		return Item{}, err
	}
	return s.toItem(row), nil
}

// StatusFor derives the display status for a stock level.
func (s *Service) StatusFor(stock int) string {
	switch {
	case stock <= 0:
		return StatusOutOfStock
	case stock <= s.lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

func (s *Service) toItem(row db.Product) Item {
	return Item{
		ProductID: db.UUIDString(row.ID),
		Name:      row.Name,
		Category:  row.Category,
		Price:     row.Price,
		Stock:     row.Stock,
		Status:    s.StatusFor(row.Stock),
	}
}
