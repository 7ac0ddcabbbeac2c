package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type fakeInventoryQueries struct {
	rows []db.Product
}

func (f *fakeInventoryQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	if arg.Offset >= len(f.rows) {
		return nil, nil
	}
	out := f.rows[arg.Offset:]
	if len(out) > arg.Limit {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (f *fakeInventoryQueries) CountProducts(_ context.Context, _ string, _ bool) (int, error) {
	return len(f.rows), nil
}

func (f *fakeInventoryQueries) SetProductStock(_ context.Context, id pgtype.UUID, stock int) (db.Product, error) {
	for i, row := range f.rows {
		if row.ID == id {
			f.rows[i].Stock = stock
			return f.rows[i], nil
		}
	}
	return db.Product{}, db.ErrNotFound
}

func inventoryRow(name string, stock int) db.Product {
	row := db.Product{Name: name, Price: decimal.RequireFromString("10.00"), Stock: stock, Active: true}
	row.ID.Bytes = uuid.New()
	row.ID.Valid = true
	return row
}

func TestStatusDerivation(t *testing.T) {
	svc := NewService(ServiceConfig{Queries: &fakeInventoryQueries{}, LowStockThreshold: 20})
	require.Equal(t, StatusOutOfStock, svc.StatusFor(0))
	require.Equal(t, StatusLowStock, svc.StatusFor(1))
	require.Equal(t, StatusLowStock, svc.StatusFor(20))
	require.Equal(t, StatusInStock, svc.StatusFor(21))
}

func TestListDerivesStatus(t *testing.T) {
	queries := &fakeInventoryQueries{rows: []db.Product{
		inventoryRow("Blue Soap Bar", 0),
		inventoryRow("Dish Liquid 1L", 5),
		inventoryRow("Bleach Gallon", 500),
	}}
	svc := NewService(ServiceConfig{Queries: queries, LowStockThreshold: 20})

	result, err := svc.List(context.Background(), "", 1, 20)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	require.Equal(t, StatusOutOfStock, result.Items[0].Status)
	require.Equal(t, StatusLowStock, result.Items[1].Status)
	require.Equal(t, StatusInStock, result.Items[2].Status)
}

func TestUpdateStockRejectsNegative(t *testing.T) {
	svc := NewService(ServiceConfig{Queries: &fakeInventoryQueries{}})
	_, err := svc.UpdateStock(context.Background(), uuid.NewString(), -1)
	require.Error(t, err)
}

func TestUpdateStock(t *testing.T) {
	row := inventoryRow("Blue Soap Bar", 3)
	queries := &fakeInventoryQueries{rows: []db.Product{row}}
	svc := NewService(ServiceConfig{Queries: queries, LowStockThreshold: 20})

	item, err := svc.UpdateStock(context.Background(), db.UUIDString(row.ID), 50)
	require.NoError(t, err)
	require.Equal(t, 50, item.Stock)
	require.Equal(t, StatusInStock, item.Status)
}
