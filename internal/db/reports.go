package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// SalesTotals aggregates revenue over a window. Cancelled orders are excluded.
type SalesTotals struct {
	OrderCount    int
	Revenue       decimal.Decimal
	TotalDiscount decimal.Decimal
}

// SalesTotalsBetween aggregates non-cancelled orders created in [from, to).
func (q *Queries) SalesTotalsBetween(ctx context.Context, from, to time.Time) (SalesTotals, error) {
	var s SalesTotals
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(grand_total), 0), COALESCE(SUM(total_discount), 0)
		 FROM orders WHERE status <> 'Cancelled' AND created_at >= $1 AND created_at < $2`,
		from, to,
	).Scan(&s.OrderCount, &s.Revenue, &s.TotalDiscount)
	if err != nil {
		return SalesTotals{}, fmt.Errorf("sales totals: %w", err)
	}
	return s, nil
}

// TopProductRow is a product's sold quantity and revenue over a window.
type TopProductRow struct {
	ProductID pgtype.UUID
	Name      string
	Qty       int
	Revenue   decimal.Decimal
}

// TopProductsBetween returns the best selling products in [from, to) by revenue.
func (q *Queries) TopProductsBetween(ctx context.Context, from, to time.Time, limit int) ([]TopProductRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT i.product_id, i.name, SUM(i.qty)::int, SUM(i.line_total)
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE o.status <> 'Cancelled' AND o.created_at >= $1 AND o.created_at < $2
		 GROUP BY i.product_id, i.name
		 ORDER BY SUM(i.line_total) DESC
		 LIMIT $3`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()
	var out []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.Name, &r.Qty, &r.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InactiveCustomerRow is a customer with no orders since their last one.
type InactiveCustomerRow struct {
	CustomerID pgtype.UUID
	Name       string
	Phone      string
	LastOrder  pgtype.Timestamptz
}

// InactiveCustomersSince returns customers whose latest order predates the
// cutoff, including customers who never ordered.
func (q *Queries) InactiveCustomersSince(ctx context.Context, cutoff time.Time) ([]InactiveCustomerRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT c.id, c.name, c.phone, MAX(o.created_at)
		 FROM customers c
		 LEFT JOIN orders o ON o.customer_id = c.id AND o.status <> 'Cancelled'
		 GROUP BY c.id, c.name, c.phone
		 HAVING MAX(o.created_at) IS NULL OR MAX(o.created_at) < $1
		 ORDER BY MAX(o.created_at) NULLS FIRST`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("inactive customers: %w", err)
	}
	defer rows.Close()
	var out []InactiveCustomerRow
	for rows.Next() {
		var r InactiveCustomerRow
		if err := rows.Scan(&r.CustomerID, &r.Name, &r.Phone, &r.LastOrder); err != nil {
			return nil, fmt.Errorf("scan inactive customer: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
