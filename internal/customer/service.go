package customer

import (
	"context"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type queryProvider interface {
	ListCustomers(ctx context.Context, search string, limit, offset int) ([]db.Customer, error)
	CountCustomers(ctx context.Context, search string) (int, error)
	GetCustomer(ctx context.Context, id pgtype.UUID) (db.Customer, error)
	CreateCustomer(ctx context.Context, arg db.CreateCustomerParams) (db.Customer, error)
	CustomerHasUnpaidTerms(ctx context.Context, customerID pgtype.UUID) (bool, error)
	ListPriceLevels(ctx context.Context) ([]db.PriceLevel, error)
}

// Service manages the customer book and the pending-payment probe.
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

// Customer is the API representation of a customer row.
type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	PriceLevelID string    `json:"price_level_id,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	AgentName    string    `json:"agent_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListResult pairs the page of customers with the total row count.
type ListResult struct {
	Items []Customer
	Total int
	Page  int
	Limit int
}

// List returns a page of customers matching the search.
func (s *Service) List(ctx context.Context, search string, page, limit int) (ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.queries.ListCustomers(ctx, search, limit, (page-1)*limit)
	if err != nil {
		return ListResult{}, err
	}
	total, err := s.queries.CountCustomers(ctx, search)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: make([]Customer, 0, len(rows)), Total: total, Page: page, Limit: limit}
	for _, row := range rows {
		result.Items = append(result.Items, toCustomer(row))
	}
	return result, nil
}

// CreateParams is the validated create payload.
type CreateParams struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	Address      string `json:"address" validate:"max=300"`
	Phone        string `json:"phone" validate:"max=30"`
	PriceLevelID string `json:"price_level_id" validate:"omitempty,uuid"`
	AgentID      string `json:"agent_id" validate:"omitempty,uuid"`
}

// Create validates the payload and inserts a new customer.
func (s *Service) Create(ctx context.Context, params CreateParams) (Customer, error) {
	if err := s.validate.Struct(params); err != nil {
		return Customer{}, &common.AppError{Code: "BAD_REQUEST", Message: "invalid customer payload", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	levelID, err := db.NullableUUID(params.PriceLevelID)
	if err != nil {
		return Customer{}, &common.AppError{Code: "BAD_REQUEST", Message: "price_level_id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	agentID, err := db.NullableUUID(params.AgentID)
	if err != nil {
		return Customer{}, &common.AppError{Code: "BAD_REQUEST", Message: "agent_id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	row, err := s.queries.CreateCustomer(ctx, db.CreateCustomerParams{
		Name:         params.Name,
		Address:      params.Address,
		Phone:        params.Phone,
		PriceLevelID: levelID,
		AgentID:      agentID,
	})
	if err != nil {
		return Customer{}, err
	}
	return toCustomer(row), nil
}

// PendingStatus reports whether a customer still owes on a TERMS order.
type PendingStatus struct {
	CustomerID string `json:"customer_id"`
	HasPending bool   `json:"has_pending"`
}

// CheckPending reports whether the customer has an unpaid TERMS order. The POS
// uses this to restrict new orders to COD while a balance is outstanding.
func (s *Service) CheckPending(ctx context.Context, customerID string) (PendingStatus, error) {
	cid, err := db.UUIDFromString(customerID)
	if err != nil {
		return PendingStatus{}, &common.AppError{Code: "BAD_REQUEST", Message: "customer id must be a valid UUID", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	if _, err := s.queries.GetCustomer(ctx, cid); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return PendingStatus{}, &common.AppError{Code: "CUSTOMER_NOT_FOUND", Message: "customer not found", HTTPStatus: http.StatusNotFound}
		}
		return PendingStatus{}, err
	}
	pending, err := s.queries.CustomerHasUnpaidTerms(ctx, cid)
	if err != nil {
		return PendingStatus{}, err
	}
	return PendingStatus{CustomerID: customerID, HasPending: pending}, nil
}

// PriceLevel is the API representation of a pricing tier.
type PriceLevel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PriceLevels returns all pricing tiers for assignment dropdowns.
func (s *Service) PriceLevels(ctx context.Context) ([]PriceLevel, error) {
	rows, err := s.queries.ListPriceLevels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PriceLevel, 0, len(rows))
	for _, row := range rows {
		out = append(out, PriceLevel{ID: db.UUIDString(row.ID), Name: row.Name})
	}
	return out, nil
}

func toCustomer(row db.Customer) Customer {
	return Customer{
		ID:           db.UUIDString(row.ID),
		Name:         row.Name,
		Address:      row.Address,
		Phone:        row.Phone,
		PriceLevelID: db.UUIDString(row.PriceLevelID),
		AgentID:      db.UUIDString(row.AgentID),
		AgentName:    row.AgentName,
		CreatedAt:    row.CreatedAt,
	}
}
