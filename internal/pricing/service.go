package pricing

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/obs"
)

type queryProvider interface {
	GetProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]db.Product, error)
	GetCustomer(ctx context.Context, id pgtype.UUID) (db.Customer, error)
	ListActiveDiscountRules(ctx context.Context) ([]db.DiscountRule, error)
}

// Service loads the pricing inputs from storage and runs the engine.
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

// CartLineRequest mirrors the POS cart line payload.
type CartLineRequest struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Discount decimal.Decimal `json:"discount"`
}

// CalculateRequest is the body of a pricing calculation call.
type CalculateRequest struct {
	Cart       []CartLineRequest `json:"cart"`
	CustomerID string            `json:"customer_id"`
}

// Calculate resolves the customer's price level, loads the catalog snapshot
// and active rules, and prices the cart.
func (s *Service) Calculate(ctx context.Context, req CalculateRequest) (Quote, error) {
	if len(req.Cart) == 0 {
		return Quote{}, &common.AppError{Code: "EMPTY_CART", Message: "cart must contain at least one line", HTTPStatus: http.StatusBadRequest}
	}

	pctx, err := s.resolveContext(ctx, req.CustomerID)
	if err != nil {
		return Quote{}, err
	}
	cart, catalog, err := s.loadCart(ctx, req.Cart)
	if err != nil {
		return Quote{}, err
	}
	rules, err := s.loadRules(ctx)
	if err != nil {
		return Quote{}, err
	}

	engine := Engine{OnInvalidRule: func(e InvalidRuleError) {
		if obs.PricingInvalidRulesTotal != nil {
			obs.PricingInvalidRulesTotal.Inc()
		}
		s.logger.Warn().Str("rule_id", e.RuleID).Str("reason", e.Reason).Msg("discount rule skipped")
	}}
	quote, err := engine.Price(cart, pctx, catalog, rules)
	if err != nil {
		countQuote("error")
		return Quote{}, translateEngineError(err)
	}
	countQuote("ok")
	return quote, nil
}

// resolveContext maps an optional customer id to its price level. Unknown or
// empty customers price as walk-ins with no level.
func (s *Service) resolveContext(ctx context.Context, customerID string) (Context, error) {
	if customerID == "" {
		return Context{}, nil
	}
	cid, err := db.UUIDFromString(customerID)
	if err != nil {
		return Context{}, &common.AppError{Code: "BAD_REQUEST", Message: "customer_id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	customer, err := s.queries.GetCustomer(ctx, cid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Context{}, &common.AppError{Code: "CUSTOMER_NOT_FOUND", Message: "customer not found", HTTPStatus: http.StatusNotFound}
		}
		return Context{}, err
	}
	return Context{PriceLevelID: db.UUIDString(customer.PriceLevelID)}, nil
}

func (s *Service) loadCart(ctx context.Context, lines []CartLineRequest) ([]CartLine, Catalog, error) {
	ids := make([]pgtype.UUID, 0, len(lines))
	cart := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		pid, err := db.UUIDFromString(line.ID)
		if err != nil {
			return nil, nil, &common.AppError{Code: "BAD_REQUEST", Message: "cart line id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
		}
		ids = append(ids, pid)
		cart = append(cart, CartLine{ProductID: line.ID, Qty: line.Quantity, ManualDiscount: line.Discount})
	}
	products, err := s.queries.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return cart, CatalogFromRows(products), nil
}

func (s *Service) loadRules(ctx context.Context) ([]Rule, error) {
	rows, err := s.queries.ListActiveDiscountRules(ctx)
	if err != nil {
		return nil, err
	}
	return RulesFromRows(rows), nil
}

// CatalogFromRows converts stored product rows into an engine catalog.
func CatalogFromRows(products []db.Product) CatalogMap {
	catalog := make(CatalogMap, len(products))
	for _, p := range products {
		catalog[db.UUIDString(p.ID)] = Product{
			ID:       db.UUIDString(p.ID),
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			Category: p.Category,
			Active:   p.Active,
		}
	}
	return catalog
}

// RulesFromRows converts stored discount rules into engine rules.
func RulesFromRows(rows []db.DiscountRule) []Rule {
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rule := Rule{
			ID:           db.UUIDString(row.ID),
			Name:         row.Name,
			Kind:         Kind(row.Kind),
			Value:        row.Value,
			Active:       row.Active,
			PriceLevelID: db.UUIDString(row.PriceLevelID),
		}
		for _, pid := range row.ProductIDs {
			rule.ProductIDs = append(rule.ProductIDs, db.UUIDString(pid))
		}
		rules = append(rules, rule)
	}
	return rules
}

func countQuote(result string) {
	if obs.PricingQuotesTotal != nil {
		obs.PricingQuotesTotal.WithLabelValues(result).Inc()
	}
}

// translateEngineError maps engine failures onto the API error shape.
func translateEngineError(err error) error {
	var notFound *ProductNotFoundError
	if errors.As(err, &notFound) {
		return &common.AppError{
			Code:       "PRODUCT_NOT_FOUND",
			Message:    "a cart line references an unknown product",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
			Details:    map[string]any{"product_id": notFound.ProductID},
		}
	}
	var stock *InsufficientStockError
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
	if errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrInvalidQuantity) || errors.Is(err, ErrNegativeDiscount) {
		return &common.AppError{Code: "BAD_REQUEST", Message: err.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return err
}
