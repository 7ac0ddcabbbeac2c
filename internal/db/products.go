package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, category, price, stock, active, created_at, updated_at"

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProductsParams filters and paginates the catalog listing.
type ListProductsParams struct {
	Search     string
	OnlyActive bool
	Limit      int
	Offset     int
}

// ListProducts returns catalog rows matching the filter, newest first.
func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	sql := "SELECT " + productColumns + " FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%') AND (NOT $2 OR active) ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	rows, err := q.db.Query(ctx, sql, arg.Search, arg.OnlyActive, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountProducts returns the total row count for the same filter as ListProducts.
func (q *Queries) CountProducts(ctx context.Context, search string, onlyActive bool) (int, error) {
	var total int
	err := q.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%') AND (NOT $2 OR active)",
		search, onlyActive,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// GetProduct fetches a single product by id.
func (q *Queries) GetProduct(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, wrapNotFound(err)
	}
	return p, nil
}

// GetProductsByIDs fetches the catalog snapshot for a set of ids.
func (q *Queries) GetProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, "SELECT "+productColumns+" FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LockProductsByIDs fetches products with row locks; call inside a transaction.
func (q *Queries) LockProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, "SELECT "+productColumns+" FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProductParams carries the insert payload for a product.
type CreateProductParams struct {
	Name     string
	Category string
	Price    decimal.Decimal
	Stock    int
}

// CreateProduct inserts a new catalog row and returns it.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		"INSERT INTO products (name, category, price, stock, active) VALUES ($1, $2, $3, $4, TRUE) RETURNING "+productColumns,
		arg.Name, arg.Category, arg.Price, arg.Stock,
	)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a catalog row.
func (q *Queries) DeleteProduct(ctx context.Context, id pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleProductStatus flips the active flag and returns the updated row.
func (q *Queries) ToggleProductStatus(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx,
		"UPDATE products SET active = NOT active, updated_at = NOW() WHERE id = $1 RETURNING "+productColumns, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, wrapNotFound(err)
	}
	return p, nil
}

// SetProductStock sets the absolute stock level and returns the updated row.
func (q *Queries) SetProductStock(ctx context.Context, id pgtype.UUID, stock int) (Product, error) {
	row := q.db.QueryRow(ctx,
		"UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1 RETURNING "+productColumns, id, stock)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, wrapNotFound(err)
	}
	return p, nil
}

// AdjustProductStock adds delta to the stock level; negative delta decrements.
func (q *Queries) AdjustProductStock(ctx context.Context, id pgtype.UUID, delta int) error {
	tag, err := q.db.Exec(ctx,
		"UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1", id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
