package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = "id, invoice_no, customer_id, agent_id, payment_type, status, subtotal, total_discount, grand_total, paid, paid_at, created_at, updated_at"

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.InvoiceNo, &o.CustomerID, &o.AgentID, &o.PaymentType, &o.Status,
		&o.Subtotal, &o.TotalDiscount, &o.GrandTotal, &o.Paid, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// NextInvoiceNo allocates the next sequential invoice number.
func (q *Queries) NextInvoiceNo(ctx context.Context) (string, error) {
	var seq int64
	if err := q.db.QueryRow(ctx, "SELECT nextval('invoice_seq')").Scan(&seq); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%06d", seq), nil
}

// CreateOrderParams carries the insert payload for an order header.
type CreateOrderParams struct {
	InvoiceNo     string
	CustomerID    pgtype.UUID
	AgentID       pgtype.UUID
	PaymentType   string
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	GrandTotal    decimal.Decimal
	Paid          bool
}

// CreateOrder inserts an order header in Pending status and returns it.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (invoice_no, customer_id, agent_id, payment_type, status, subtotal, total_discount, grand_total, paid, paid_at)
		 VALUES ($1, $2, $3, $4, 'Pending', $5, $6, $7, $8, CASE WHEN $8 THEN NOW() ELSE NULL END)
		 RETURNING `+orderColumns,
		arg.InvoiceNo, arg.CustomerID, arg.AgentID, arg.PaymentType,
		arg.Subtotal, arg.TotalDiscount, arg.GrandTotal, arg.Paid,
	)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// InsertOrderItemParams carries the insert payload for a priced order line.
type InsertOrderItemParams struct {
	OrderID         pgtype.UUID
	ProductID       pgtype.UUID
	Name            string
	Qty             int
	UnitPrice       decimal.Decimal
	DiscountPerUnit decimal.Decimal
	FinalUnitPrice  decimal.Decimal
	LineTotal       decimal.Decimal
	RuleID          pgtype.UUID
}

// InsertOrderItem stores one priced line of an order.
func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO order_items (order_id, product_id, name, qty, unit_price, discount_per_unit, final_unit_price, line_total, rule_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		arg.OrderID, arg.ProductID, arg.Name, arg.Qty,
		arg.UnitPrice, arg.DiscountPerUnit, arg.FinalUnitPrice, arg.LineTotal, arg.RuleID,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// ListOrdersParams filters the order listing.
type ListOrdersParams struct {
	Statuses []string
	Limit    int
	Offset   int
}

// ListOrders returns order headers, newest first. An empty status list
// matches every status.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE (cardinality($1::text[]) = 0 OR status = ANY($1)) ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		arg.Statuses, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOrders returns the total row count for the same filter as ListOrders.
func (q *Queries) CountOrders(ctx context.Context, statuses []string) (int, error) {
	var total int
	err := q.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE (cardinality($1::text[]) = 0 OR status = ANY($1))", statuses,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

// GetOrder fetches a single order header by id.
func (q *Queries) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	return o, nil
}

// GetOrderForUpdate fetches an order header with a row lock; call inside a
// transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	return o, nil
}

// ListOrderItems returns the lines of an order in insertion order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		"SELECT id, order_id, product_id, name, qty, unit_price, discount_per_unit, final_unit_price, line_total, rule_id FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Qty,
			&it.UnitPrice, &it.DiscountPerUnit, &it.FinalUnitPrice, &it.LineTotal, &it.RuleID); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateOrderStatus sets the order status and returns the updated header.
func (q *Queries) UpdateOrderStatus(ctx context.Context, id pgtype.UUID, status string) (Order, error) {
	row := q.db.QueryRow(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING "+orderColumns, id, status)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	return o, nil
}

// UpdateOrderInvoiceNo overwrites the invoice number with a manual value.
func (q *Queries) UpdateOrderInvoiceNo(ctx context.Context, id pgtype.UUID, invoiceNo string) (Order, error) {
	row := q.db.QueryRow(ctx,
		"UPDATE orders SET invoice_no = $2, updated_at = NOW() WHERE id = $1 RETURNING "+orderColumns, id, invoiceNo)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	return o, nil
}

// ListUnpaidTermsOrders returns unpaid TERMS orders that are not cancelled,
// oldest first.
func (q *Queries) ListUnpaidTermsOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_type = 'TERMS' AND NOT paid AND status <> 'Cancelled' ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list unpaid orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOrderPaid marks the order as paid and returns the updated header.
func (q *Queries) MarkOrderPaid(ctx context.Context, id pgtype.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		"UPDATE orders SET paid = TRUE, paid_at = NOW(), updated_at = NOW() WHERE id = $1 RETURNING "+orderColumns, id)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, wrapNotFound(err)
	}
	return o, nil
}
