package pricing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/pricing"
)

type fakeQueries struct {
	products  map[string]db.Product
	customers map[string]db.Customer
	rules     []db.DiscountRule
}

func (f *fakeQueries) GetProductsByIDs(_ context.Context, ids []pgtype.UUID) ([]db.Product, error) {
	var out []db.Product
	for _, id := range ids {
		if p, ok := f.products[db.UUIDString(id)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeQueries) GetCustomer(_ context.Context, id pgtype.UUID) (db.Customer, error) {
	c, ok := f.customers[db.UUIDString(id)]
	if !ok {
		return db.Customer{}, db.ErrNotFound
	}
	return c, nil
}

func (f *fakeQueries) ListActiveDiscountRules(_ context.Context) ([]db.DiscountRule, error) {
	return f.rules, nil
}

func mustUUID(t *testing.T, s string) pgtype.UUID {
	t.Helper()
	id, err := db.UUIDFromString(s)
	require.NoError(t, err)
	return id
}

func newIDs(t *testing.T) (productID, customerID, levelID, ruleID string) {
	t.Helper()
	return uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()
}

func TestCalculateEndpoint(t *testing.T) {
	productID, customerID, levelID, ruleID := newIDs(t)

	queries := &fakeQueries{
		products: map[string]db.Product{
			productID: {ID: mustUUID(t, productID), Name: "Blue Soap Bar", Price: decimal.RequireFromString("100.00"), Stock: 10, Active: true},
		},
		customers: map[string]db.Customer{
			customerID: {ID: mustUUID(t, customerID), Name: "Aling Nena", PriceLevelID: mustUUID(t, levelID)},
		},
		rules: []db.DiscountRule{
			{ID: mustUUID(t, ruleID), Name: "Wholesale 10%", Kind: "PERCENTAGE", Value: decimal.RequireFromString("10"), Active: true, PriceLevelID: mustUUID(t, levelID)},
		},
	}
	service := pricing.NewService(pricing.ServiceConfig{Queries: queries, Logger: zerolog.Nop()})
	handler := pricing.NewHandler(pricing.HandlerConfig{Service: service})

	body, err := json.Marshal(map[string]any{
		"cart":        []map[string]any{{"id": productID, "quantity": 3, "discount": 0}},
		"customer_id": customerID,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Calculate(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Lines []struct {
				FinalPrice      string `json:"finalPrice"`
				DiscountPerUnit string `json:"discountPerUnit"`
				LineTotal       string `json:"lineTotal"`
			} `json:"lines"`
			Subtotal      string `json:"subtotal"`
			TotalDiscount string `json:"totalDiscount"`
			GrandTotal    string `json:"grandTotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Lines, 1)
	require.Equal(t, "90.00", resp.Data.Lines[0].FinalPrice)
	require.Equal(t, "10.00", resp.Data.Lines[0].DiscountPerUnit)
	require.Equal(t, "270.00", resp.Data.Lines[0].LineTotal)
	require.Equal(t, "300.00", resp.Data.Subtotal)
	require.Equal(t, "30.00", resp.Data.TotalDiscount)
	require.Equal(t, "270.00", resp.Data.GrandTotal)
}

func TestCalculateEndpointInsufficientStock(t *testing.T) {
	productID, _, _, _ := newIDs(t)

	queries := &fakeQueries{
		products: map[string]db.Product{
			productID: {ID: mustUUID(t, productID), Name: "Blue Soap Bar", Price: decimal.RequireFromString("100.00"), Stock: 10, Active: true},
		},
	}
	service := pricing.NewService(pricing.ServiceConfig{Queries: queries, Logger: zerolog.Nop()})
	handler := pricing.NewHandler(pricing.HandlerConfig{Service: service})

	body, err := json.Marshal(map[string]any{
		"cart": []map[string]any{{"id": productID, "quantity": 11}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Calculate(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				ProductID string `json:"product_id"`
				Requested int    `json:"requested"`
				Available int    `json:"available"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	require.Equal(t, productID, resp.Error.Details.ProductID)
	require.Equal(t, 11, resp.Error.Details.Requested)
	require.Equal(t, 10, resp.Error.Details.Available)
}

func TestCalculateEndpointUnknownProduct(t *testing.T) {
	queries := &fakeQueries{products: map[string]db.Product{}}
	service := pricing.NewService(pricing.ServiceConfig{Queries: queries, Logger: zerolog.Nop()})
	handler := pricing.NewHandler(pricing.HandlerConfig{Service: service})

	body, err := json.Marshal(map[string]any{
		"cart": []map[string]any{{"id": uuid.NewString(), "quantity": 1}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/calculate", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Calculate(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCalculateEndpointEmptyCart(t *testing.T) {
	service := pricing.NewService(pricing.ServiceConfig{Queries: &fakeQueries{}, Logger: zerolog.Nop()})
	handler := pricing.NewHandler(pricing.HandlerConfig{Service: service})

	req := httptest.NewRequest(http.MethodPost, "/api/pricing/calculate", bytes.NewReader([]byte(`{"cart":[]}`)))
	rr := httptest.NewRecorder()
	handler.Calculate(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
