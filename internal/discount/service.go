package discount

import (
	"context"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/pricing"
)

type queryProvider interface {
	ListDiscountRules(ctx context.Context) ([]db.DiscountRule, error)
	CreateDiscountRule(ctx context.Context, arg db.CreateDiscountRuleParams) (db.DiscountRule, error)
	SetDiscountRuleActive(ctx context.Context, id pgtype.UUID, active bool) error
}

// Service manages discount rules and their product assignments.
type Service struct {
	queries  queryProvider
	validate *validator.Validate
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries  queryProvider
	Validate *validator.Validate
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	validate := cfg.Validate
	if validate == nil {
		validate = validator.New()
	}
	return &Service{queries: cfg.Queries, validate: validate}
}

// Rule is the API representation of a discount rule.
type Rule struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         string          `json:"type"`
	Value        decimal.Decimal `json:"value"`
	Active       bool            `json:"active"`
	PriceLevelID string          `json:"price_level_id,omitempty"`
	ProductIDs   []string        `json:"product_ids,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// List returns every discount rule with assignments.
func (s *Service) List(ctx context.Context) ([]Rule, error) {
	rows, err := s.queries.ListDiscountRules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRule(row))
	}
	return out, nil
}

// CreateParams is the validated create payload for an advanced rule.
type CreateParams struct {
	Name         string          `json:"name" validate:"required,min=1,max=200"`
	Kind         string          `json:"type" validate:"required"`
	Value        decimal.Decimal `json:"value"`
	PriceLevelID string          `json:"price_level_id" validate:"omitempty,uuid"`
	ProductIDs   []string        `json:"product_ids" validate:"omitempty,dive,uuid"`
}

// Create validates and stores a discount rule. Kind-specific value ranges are
// enforced here so malformed rules never reach storage.
func (s *Service) Create(ctx context.Context, params CreateParams) (Rule, error) {
	if err := s.validate.Struct(params); err != nil {
		return Rule{}, badRequest("payload", "invalid discount rule payload", err)
	}
	switch pricing.Kind(params.Kind) {
	case pricing.KindPercentage:
		if params.Value.IsNegative() || params.Value.GreaterThan(decimal.NewFromInt(100)) {
			return Rule{}, badRequest("value", "percentage must be between 0 and 100", nil)
		}
	case pricing.KindFixedAmount:
		if params.Value.IsNegative() {
			return Rule{}, badRequest("value", "fixed amount cannot be negative", nil)
		}
	default:
		return Rule{}, badRequest("type", "type must be PERCENTAGE or FIXED_AMOUNT", nil)
	}

	levelID, err := db.NullableUUID(params.PriceLevelID)
	if err != nil {
		return Rule{}, badRequest("price_level_id", "price_level_id must be a valid UUID", err)
	}
	productIDs := make([]pgtype.UUID, 0, len(params.ProductIDs))
	for _, raw := range params.ProductIDs {
		pid, err := db.UUIDFromString(raw)
		if err != nil {
			return Rule{}, badRequest("product_ids", "product ids must be valid UUIDs", err)
		}
		productIDs = append(productIDs, pid)
	}

	row, err := s.queries.CreateDiscountRule(ctx, db.CreateDiscountRuleParams{
		Name:         params.Name,
		Kind:         params.Kind,
		Value:        params.Value.Round(2),
		PriceLevelID: levelID,
		ProductIDs:   productIDs,
	})
	if err != nil {
		return Rule{}, err
	}
	return toRule(row), nil
}

// SetActive flips a rule's active flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	rid, err := db.UUIDFromString(id)
	if err != nil {
		return badRequest("id", "rule id must be a valid UUID", err)
	}
	if err := s.queries.SetDiscountRuleActive(ctx, rid, active); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &common.AppError{Code: "RULE_NOT_FOUND", Message: "discount rule not found", HTTPStatus: http.StatusNotFound}
		}
		return err
	}
	return nil
}

func toRule(row db.DiscountRule) Rule {
	rule := Rule{
		ID:           db.UUIDString(row.ID),
		Name:         row.Name,
		Kind:         row.Kind,
		Value:        row.Value,
		Active:       row.Active,
		PriceLevelID: db.UUIDString(row.PriceLevelID),
		CreatedAt:    row.CreatedAt,
	}
	for _, pid := range row.ProductIDs {
		rule.ProductIDs = append(rule.ProductIDs, db.UUIDString(pid))
	}
	return rule
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
