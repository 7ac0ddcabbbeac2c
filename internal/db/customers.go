package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = "id, name, address, phone, price_level_id, agent_id, created_at"

func scanCustomer(row interface{ Scan(dest ...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.PriceLevelID, &c.AgentID, &c.CreatedAt)
	return c, err
}

// ListCustomers returns customers matching the search, alphabetical, with the
// assigned agent's username joined in.
func (q *Queries) ListCustomers(ctx context.Context, search string, limit, offset int) ([]Customer, error) {
	rows, err := q.db.Query(ctx,
		`SELECT c.id, c.name, c.address, c.phone, c.price_level_id, c.agent_id, COALESCE(u.username, ''), c.created_at
		 FROM customers c LEFT JOIN users u ON u.id = c.agent_id
		 WHERE ($1 = '' OR c.name ILIKE '%' || $1 || '%') ORDER BY c.name LIMIT $2 OFFSET $3`,
		search, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.PriceLevelID, &c.AgentID, &c.AgentName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCustomers returns the total row count for the same filter as ListCustomers.
func (q *Queries) CountCustomers(ctx context.Context, search string) (int, error) {
	var total int
	err := q.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM customers WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')", search,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return total, nil
}

// GetCustomer fetches a single customer by id.
func (q *Queries) GetCustomer(ctx context.Context, id pgtype.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = $1", id)
	c, err := scanCustomer(row)
	if err != nil {
		return Customer{}, wrapNotFound(err)
	}
	return c, nil
}

// CreateCustomerParams carries the insert payload for a customer.
type CreateCustomerParams struct {
	Name         string
	Address      string
	Phone        string
	PriceLevelID pgtype.UUID
	AgentID      pgtype.UUID
}

// CreateCustomer inserts a customer and returns the stored row.
func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		"INSERT INTO customers (name, address, phone, price_level_id, agent_id) VALUES ($1, $2, $3, $4, $5) RETURNING "+customerColumns,
		arg.Name, arg.Address, arg.Phone, arg.PriceLevelID, arg.AgentID,
	)
	c, err := scanCustomer(row)
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// CustomerHasUnpaidTerms reports whether the customer has an unpaid TERMS
// order that is not cancelled.
func (q *Queries) CustomerHasUnpaidTerms(ctx context.Context, customerID pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND payment_type = 'TERMS' AND NOT paid AND status <> 'Cancelled')",
		customerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending payment: %w", err)
	}
	return exists, nil
}

// ListPriceLevels returns all pricing tiers.
func (q *Queries) ListPriceLevels(ctx context.Context) ([]PriceLevel, error) {
	rows, err := q.db.Query(ctx, "SELECT id, name FROM price_levels ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list price levels: %w", err)
	}
	defer rows.Close()
	var out []PriceLevel
	for rows.Next() {
		var pl PriceLevel
		if err := rows.Scan(&pl.ID, &pl.Name); err != nil {
			return nil, fmt.Errorf("scan price level: %w", err)
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}
