package order

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/obs"
	"github.com/crmsnjhn/bughaw-api/internal/pricing"
)

// Payment types accepted at the counter.
const (
	PaymentCOD   = "COD"
	PaymentTerms = "TERMS"
)

// Service creates and manages orders. Creation re-prices the cart inside a
// transaction so stored totals are authoritative regardless of what the POS
// displayed.
type Service struct {
	Pool   *pgxpool.Pool
	Q      *db.Queries
	Logger zerolog.Logger
}

// LineInput is a raw cart line in the order payload.
type LineInput struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Discount decimal.Decimal `json:"discount"`
}

// CreateInput is the order creation payload.
type CreateInput struct {
	CustomerID  string      `json:"customer_id"`
	PaymentType string      `json:"payment_type"`
	Cart        []LineInput `json:"cart"`
}

// Header is the API representation of an order header.
type Header struct {
	ID            string          `json:"id"`
	InvoiceNo     string          `json:"invoice_no"`
	CustomerID    string          `json:"customer_id"`
	AgentID       string          `json:"agent_id,omitempty"`
	PaymentType   string          `json:"payment_type"`
	Status        string          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Paid          bool            `json:"paid"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Line is the API representation of a priced order line.
type Line struct {
	ProductID       string          `json:"product_id"`
	Name            string          `json:"name"`
	Qty             int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPerUnit decimal.Decimal `json:"discount_per_unit"`
	FinalUnitPrice  decimal.Decimal `json:"final_unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
	RuleID          string          `json:"rule_id,omitempty"`
}

// Detail is an order header with its lines.
type Detail struct {
	Header
	Lines []Line `json:"lines"`
}

// ListResult pairs a page of orders with the total row count.
type ListResult struct {
	Items []Header
	Total int
	Page  int
	Limit int
}

// Create re-prices the cart under row locks, enforces the pending-payment
// policy, decrements stock, and stores the order with a fresh invoice number.
func (s *Service) Create(ctx context.Context, agentID string, in CreateInput) (Detail, error) {
	if s == nil || s.Pool == nil || s.Q == nil {
		return Detail{}, errors.New("order service not configured")
	}
	if in.PaymentType != PaymentCOD && in.PaymentType != PaymentTerms {
		return Detail{}, badRequest("payment_type", "payment_type must be COD or TERMS", nil)
	}
	if len(in.Cart) == 0 {
		return Detail{}, badRequest("cart", "cart must contain at least one line", nil)
	}
	customerID, err := db.UUIDFromString(in.CustomerID)
	if err != nil {
		return Detail{}, badRequest("customer_id", "customer_id must be a valid UUID", err)
	}
	agentUUID, err := db.NullableUUID(agentID)
	if err != nil {
		return Detail{}, badRequest("agent", "agent id must be a valid UUID", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Detail{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	customer, err := qtx.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Detail{}, &common.AppError{Code: "CUSTOMER_NOT_FOUND", Message: "customer not found", HTTPStatus: http.StatusNotFound}
		}
		return Detail{}, err
	}

	// Customers with an outstanding TERMS balance may only pay COD.
	if in.PaymentType == PaymentTerms {
		pending, err := qtx.CustomerHasUnpaidTerms(ctx, customerID)
		if err != nil {
			return Detail{}, err
		}
		if pending {
			return Detail{}, &common.AppError{
				Code:       "PENDING_PAYMENT",
				Message:    "customer has an unpaid TERMS order; only COD is allowed",
				HTTPStatus: http.StatusConflict,
			}
		}
	}

	cart, ids, err := toCartLines(in.Cart)
	if err != nil {
		return Detail{}, err
	}
	products, err := qtx.LockProductsByIDs(ctx, ids)
	if err != nil {
		return Detail{}, err
	}
	rules, err := qtx.ListActiveDiscountRules(ctx)
	if err != nil {
		return Detail{}, err
	}

	engine := pricing.Engine{OnInvalidRule: func(e pricing.InvalidRuleError) {
		s.Logger.Warn().Str("rule_id", e.RuleID).Str("reason", e.Reason).Msg("discount rule skipped")
	}}
	quote, err := engine.Price(cart, pricing.Context{PriceLevelID: db.UUIDString(customer.PriceLevelID)},
		pricing.CatalogFromRows(products), pricing.RulesFromRows(rules))
	if err != nil {
		return Detail{}, translatePricingError(err)
	}

	for _, line := range quote.Lines {
		pid, err := db.UUIDFromString(line.ProductID)
		if err != nil {
			return Detail{}, err
		}
		if err := qtx.AdjustProductStock(ctx, pid, -line.Qty); err != nil {
			return Detail{}, err
		}
	}

	invoiceNo, err := qtx.NextInvoiceNo(ctx)
	if err != nil {
		return Detail{}, err
	}
	header, err := qtx.CreateOrder(ctx, db.CreateOrderParams{
		InvoiceNo:     invoiceNo,
		CustomerID:    customerID,
		AgentID:       agentUUID,
		PaymentType:   in.PaymentType,
		Subtotal:      quote.Subtotal,
		TotalDiscount: quote.TotalDiscount,
		GrandTotal:    quote.GrandTotal,
	})
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Header: toHeader(header), Lines: make([]Line, 0, len(quote.Lines))}
	for _, line := range quote.Lines {
		pid, err := db.UUIDFromString(line.ProductID)
		if err != nil {
			return Detail{}, err
		}
		var ruleID string
		var ruleUUID = emptyUUID()
		if line.AppliedRule != nil {
			ruleID = line.AppliedRule.ID
			ruleUUID, err = db.UUIDFromString(ruleID)
			if err != nil {
				return Detail{}, err
			}
		}
		if err := qtx.InsertOrderItem(ctx, db.InsertOrderItemParams{
			OrderID:         header.ID,
			ProductID:       pid,
			Name:            line.Name,
			Qty:             line.Qty,
			UnitPrice:       line.UnitPrice,
			DiscountPerUnit: line.DiscountPerUnit,
			FinalUnitPrice:  line.FinalUnitPrice,
			LineTotal:       line.LineTotal,
			RuleID:          ruleUUID,
		}); err != nil {
			return Detail{}, err
		}
		detail.Lines = append(detail.Lines, Line{
			ProductID:       line.ProductID,
			Name:            line.Name,
			Qty:             line.Qty,
			UnitPrice:       line.UnitPrice,
			DiscountPerUnit: line.DiscountPerUnit,
			FinalUnitPrice:  line.FinalUnitPrice,
			LineTotal:       line.LineTotal,
			RuleID:          ruleID,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Detail{}, err
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.WithLabelValues(in.PaymentType).Inc()
	}
	s.Logger.Info().Str("order_id", detail.ID).Str("invoice_no", detail.InvoiceNo).
		Str("payment_type", in.PaymentType).Str("grand_total", detail.GrandTotal.String()).
		Msg("order created")
	return detail, nil
}

// List returns a page of orders filtered by status.
func (s *Service) List(ctx context.Context, statuses []string, page, limit int) (ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	for _, st := range statuses {
		if !ValidStatus(st) {
			return ListResult{}, badRequest("status", "unknown order status", nil)
		}
	}
	if statuses == nil {
		statuses = []string{}
	}
	rows, err := s.Q.ListOrders(ctx, db.ListOrdersParams{Statuses: statuses, Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.Q.CountOrders(ctx, statuses)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: make([]Header, 0, len(rows)), Total: total, Page: page, Limit: limit}
	for _, row := range rows {
		result.Items = append(result.Items, toHeader(row))
	}
	return result, nil
}

// History returns completed orders, delivered or cancelled.
func (s *Service) History(ctx context.Context, page, limit int) (ListResult, error) {
	return s.List(ctx, []string{StatusDelivered, StatusCancelled}, page, limit)
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	oid, err := db.UUIDFromString(id)
	if err != nil {
		return Detail{}, badRequest("id", "order id must be a valid UUID", err)
	}
	header, err := s.Q.GetOrder(ctx, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Detail{}, orderNotFound()
		}
		return Detail{}, err
	}
	items, err := s.Q.ListOrderItems(ctx, oid)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Header: toHeader(header), Lines: make([]Line, 0, len(items))}
	for _, it := range items {
		detail.Lines = append(detail.Lines, Line{
			ProductID:       db.UUIDString(it.ProductID),
			Name:            it.Name,
			Qty:             it.Qty,
			UnitPrice:       it.UnitPrice,
			DiscountPerUnit: it.DiscountPerUnit,
			FinalUnitPrice:  it.FinalUnitPrice,
			LineTotal:       it.LineTotal,
			RuleID:          db.UUIDString(it.RuleID),
		})
	}
	return detail, nil
}

// UpdateStatus moves an order through the fulfilment flow. Cancelling restores
// the stock its lines consumed.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Header, error) {
	oid, err := db.UUIDFromString(id)
	if err != nil {
		return Header{}, badRequest("id", "order id must be a valid UUID", err)
	}
	if !ValidStatus(status) {
		return Header{}, badRequest("status", "unknown order status", nil)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Header{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	current, err := qtx.GetOrderForUpdate(ctx, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Header{}, orderNotFound()
		}
		return Header{}, err
	}
	if !CanTransition(current.Status, status) {
		return Header{}, &common.AppError{
			Code:       "INVALID_TRANSITION",
			Message:    "order cannot move from " + current.Status + " to " + status,
			HTTPStatus: http.StatusConflict,
		}
	}

	if status == StatusCancelled {
		items, err := qtx.ListOrderItems(ctx, oid)
		if err != nil {
			return Header{}, err
		}
		for _, it := range items {
			if err := qtx.AdjustProductStock(ctx, it.ProductID, it.Qty); err != nil {
				return Header{}, err
			}
		}
	}

	updated, err := qtx.UpdateOrderStatus(ctx, oid, status)
	if err != nil {
		return Header{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Header{}, err
	}
	if obs.OrdersStatusTotal != nil {
		obs.OrdersStatusTotal.WithLabelValues(status).Inc()
	}
	return toHeader(updated), nil
}

// UpdateInvoice overwrites the invoice number with a manual value.
func (s *Service) UpdateInvoice(ctx context.Context, id, invoiceNo string) (Header, error) {
	oid, err := db.UUIDFromString(id)
	if err != nil {
		return Header{}, badRequest("id", "order id must be a valid UUID", err)
	}
	invoiceNo = strings.TrimSpace(invoiceNo)
	if invoiceNo == "" {
		return Header{}, badRequest("invoice_no", "invoice number cannot be empty", nil)
	}
	updated, err := s.Q.UpdateOrderInvoiceNo(ctx, oid, invoiceNo)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Header{}, orderNotFound()
		}
		return Header{}, err
	}
	return toHeader(updated), nil
}

func toCartLines(lines []LineInput) ([]pricing.CartLine, []pgtype.UUID, error) {
	cart := make([]pricing.CartLine, 0, len(lines))
	ids := make([]pgtype.UUID, 0, len(lines))
	for _, line := range lines {
		pid, err := db.UUIDFromString(line.ID)
		if err != nil {
			return nil, nil, badRequest("cart", "cart line id must be a valid UUID", err)
		}
		ids = append(ids, pid)
		cart = append(cart, pricing.CartLine{ProductID: line.ID, Qty: line.Quantity, ManualDiscount: line.Discount})
	}
	return cart, ids, nil
}

func toHeader(row db.Order) Header {
	return Header{
		ID:            db.UUIDString(row.ID),
		InvoiceNo:     row.InvoiceNo,
		CustomerID:    db.UUIDString(row.CustomerID),
		AgentID:       db.UUIDString(row.AgentID),
		PaymentType:   row.PaymentType,
		Status:        row.Status,
		Subtotal:      row.Subtotal,
		TotalDiscount: row.TotalDiscount,
		GrandTotal:    row.GrandTotal,
		Paid:          row.Paid,
		CreatedAt:     row.CreatedAt,
	}
}

func emptyUUID() pgtype.UUID { return pgtype.UUID{} }

func translatePricingError(err error) error {
	var notFound *pricing.ProductNotFoundError
	if errors.As(err, &notFound) {
		return &common.AppError{
			Code:       "PRODUCT_NOT_FOUND",
			Message:    "a cart line references an unknown product",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
			Details:    map[string]any{"product_id": notFound.ProductID},
		}
	}
	var stock *pricing.InsufficientStockError
	if errors.As(err, &stock) {
		if obs.StockRejectionsTotal != nil {
			obs.StockRejectionsTotal.Inc()
		}
		return &common.AppError{
			Code:       "INSUFFICIENT_STOCK",
			Message:    "requested quantity exceeds available stock",
			HTTPStatus: http.StatusConflict,
			Err:        err,
			Details: map[string]any{
				"product_id": stock.ProductID,
				"requested":  stock.Requested,
				"available":  stock.Available,
			},
		}
	}
	if errors.Is(err, pricing.ErrEmptyCart) || errors.Is(err, pricing.ErrInvalidQuantity) || errors.Is(err, pricing.ErrNegativeDiscount) {
		return badRequest("cart", err.Error(), err)
	}
	return err
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}

func orderNotFound() *common.AppError {
	return &common.AppError{Code: "ORDER_NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound}
}
