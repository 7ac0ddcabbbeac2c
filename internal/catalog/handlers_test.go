package catalog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/catalog"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type fakeCatalogQueries struct {
	rows []db.Product
}

func (f *fakeCatalogQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	var out []db.Product
	for _, row := range f.rows {
		if arg.OnlyActive && !row.Active {
			continue
		}
		out = append(out, row)
	}
	if arg.Offset >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if len(out) > arg.Limit {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *fakeCatalogQueries) CountProducts(_ context.Context, _ string, onlyActive bool) (int, error) {
	total := 0
	for _, row := range f.rows {
		if onlyActive && !row.Active {
			continue
		}
		total++
	}
	return total, nil
}

func (f *fakeCatalogQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	row := db.Product{
		Name:      arg.Name,
		Category:  arg.Category,
		Price:     arg.Price,
		Stock:     arg.Stock,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	row.ID.Bytes = uuid.New()
	row.ID.Valid = true
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeCatalogQueries) DeleteProduct(_ context.Context, id pgtype.UUID) error {
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeCatalogQueries) ToggleProductStatus(_ context.Context, id pgtype.UUID) (db.Product, error) {
	for i, row := range f.rows {
		if row.ID == id {
			f.rows[i].Active = !row.Active
			return f.rows[i], nil
		}
	}
	return db.Product{}, db.ErrNotFound
}

func newCatalogHandler(queries *fakeCatalogQueries) *catalog.Handler {
	svc := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Logger:       zerolog.Nop(),
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	return catalog.NewHandler(catalog.HandlerConfig{Service: svc})
}

func seedProduct(name string, price string, stock int, active bool) db.Product {
	row := db.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Active:    active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	row.ID.Bytes = uuid.New()
	row.ID.Valid = true
	return row
}

func TestProductsList(t *testing.T) {
	queries := &fakeCatalogQueries{rows: []db.Product{
		seedProduct("Blue Soap Bar", "100.00", 10, true),
		seedProduct("Dish Liquid 1L", "59.75", 200, false),
	}}
	handler := newCatalogHandler(queries)

	req := httptest.NewRequest(http.MethodGet, "/api/products?active=true", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Blue Soap Bar", resp.Data[0].Name)
	require.Equal(t, 1, resp.Pagination.TotalItems)
}

func TestProductsCreateAndValidation(t *testing.T) {
	queries := &fakeCatalogQueries{}
	handler := newCatalogHandler(queries)

	body := []byte(`{"name":"Bleach Gallon","category":"cleaning","price":"185.50","stock":35}`)
	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, queries.rows, 1)

	// missing name fails validation
	req = httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader([]byte(`{"price":"1.00","stock":1}`)))
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// negative stock fails validation
	req = httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader([]byte(`{"name":"X","price":"1.00","stock":-5}`)))
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductsToggleStatus(t *testing.T) {
	row := seedProduct("Blue Soap Bar", "100.00", 10, true)
	queries := &fakeCatalogQueries{rows: []db.Product{row}}
	handler := newCatalogHandler(queries)

	req := httptest.NewRequest(http.MethodPut, "/api/products/"+db.UUIDString(row.ID)+"/toggle-status", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", db.UUIDString(row.ID))
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler.ToggleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, queries.rows[0].Active)
}

func TestProductsDeleteNotFound(t *testing.T) {
	handler := newCatalogHandler(&fakeCatalogQueries{})

	req := httptest.NewRequest(http.MethodDelete, "/api/products/"+uuid.NewString(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", uuid.NewString())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
