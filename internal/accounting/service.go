package accounting

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type queryProvider interface {
	ListUnpaidTermsOrders(ctx context.Context) ([]db.Order, error)
	GetOrder(ctx context.Context, id pgtype.UUID) (db.Order, error)
	MarkOrderPaid(ctx context.Context, id pgtype.UUID) (db.Order, error)
	GetUser(ctx context.Context, id pgtype.UUID) (db.User, error)
	GetCustomer(ctx context.Context, id pgtype.UUID) (db.Customer, error)
}

// Service tracks receivables on TERMS orders.
type Service struct {
	queries queryProvider
	logger  zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{queries: cfg.Queries, logger: cfg.Logger}
}

// UnpaidOrder is a receivable row shown in the accounting screen.
type UnpaidOrder struct {
	OrderID      string          `json:"order_id"`
	InvoiceNo    string          `json:"invoice_no"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListUnpaid returns unpaid TERMS orders, oldest first.
func (s *Service) ListUnpaid(ctx context.Context) ([]UnpaidOrder, error) {
	rows, err := s.queries.ListUnpaidTermsOrders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UnpaidOrder, 0, len(rows))
	for _, row := range rows {
		entry := UnpaidOrder{
			OrderID:    db.UUIDString(row.ID),
			InvoiceNo:  row.InvoiceNo,
			CustomerID: db.UUIDString(row.CustomerID),
			GrandTotal: row.GrandTotal,
			CreatedAt:  row.CreatedAt,
		}
		if customer, err := s.queries.GetCustomer(ctx, row.CustomerID); err == nil {
			entry.CustomerName = customer.Name
		}
		out = append(out, entry)
	}
	return out, nil
}

// MarkPaid settles a TERMS order. The caller must re-confirm their own
// password before the receivable is cleared.
func (s *Service) MarkPaid(ctx context.Context, orderID, callerID, password string) (UnpaidOrder, error) {
	oid, err := db.UUIDFromString(orderID)
	if err != nil {
		return UnpaidOrder{}, &common.AppError{Code: "BAD_REQUEST", Message: "order id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	uid, err := db.UUIDFromString(callerID)
	if err != nil {
		return UnpaidOrder{}, &common.AppError{Code: "UNAUTHORIZED", Message: "authentication required", HTTPStatus: http.StatusUnauthorized, Err: err}
	}
	caller, err := s.queries.GetUser(ctx, uid)
	if err != nil {
		return UnpaidOrder{}, &common.AppError{Code: "UNAUTHORIZED", Message: "authentication required", HTTPStatus: http.StatusUnauthorized, Err: err}
	}
	match, err := argon2id.ComparePasswordAndHash(password, caller.PasswordHash)
	if err != nil {
		return UnpaidOrder{}, err
	}
	if !match {
		s.logger.Warn().Str("order_id", orderID).Str("user_id", callerID).Msg("mark-paid password re-confirmation failed")
		return UnpaidOrder{}, &common.AppError{Code: "FORBIDDEN", Message: "password confirmation failed", HTTPStatus: http.StatusForbidden}
	}

	order, err := s.queries.GetOrder(ctx, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return UnpaidOrder{}, &common.AppError{Code: "ORDER_NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound}
		}
		return UnpaidOrder{}, err
	}
	if order.PaymentType != "TERMS" || order.Paid {
		return UnpaidOrder{}, &common.AppError{Code: "NOT_RECEIVABLE", Message: "order is not an unpaid TERMS order", HTTPStatus: http.StatusConflict}
	}

	updated, err := s.queries.MarkOrderPaid(ctx, oid)
	if err != nil {
		return UnpaidOrder{}, err
	}
	s.logger.Info().Str("order_id", orderID).Str("user_id", callerID).Msg("order marked paid")
	return UnpaidOrder{
		OrderID:    db.UUIDString(updated.ID),
		InvoiceNo:  updated.InvoiceNo,
		CustomerID: db.UUIDString(updated.CustomerID),
		GrandTotal: updated.GrandTotal,
		CreatedAt:  updated.CreatedAt,
	}, nil
}
