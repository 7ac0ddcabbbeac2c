package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Product is a catalog row.
type Product struct {
	ID        pgtype.UUID
	Name      string
	Category  string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceLevel is a customer pricing tier.
type PriceLevel struct {
	ID   pgtype.UUID
	Name string
}

// Branch is a store branch row. At most one branch is the main branch.
type Branch struct {
	ID           pgtype.UUID
	Name         string
	IsMainBranch bool
	CreatedAt    time.Time
}

// Customer is a customer book row. AgentName is populated by list queries
// that join the assigned sales agent; it is not a column.
type Customer struct {
	ID           pgtype.UUID
	Name         string
	Address      string
	Phone        string
	PriceLevelID pgtype.UUID
	AgentID      pgtype.UUID
	AgentName    string
	CreatedAt    time.Time
}

// DiscountRule is a discount rule row; ProductIDs holds its assignments.
type DiscountRule struct {
	ID           pgtype.UUID
	Name         string
	Kind         string
	Value        decimal.Decimal
	Active       bool
	PriceLevelID pgtype.UUID
	CreatedAt    time.Time
	ProductIDs   []pgtype.UUID
}

// Order is an order header row.
type Order struct {
	ID            pgtype.UUID
	InvoiceNo     string
	CustomerID    pgtype.UUID
	AgentID       pgtype.UUID
	PaymentType   string
	Status        string
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	GrandTotal    decimal.Decimal
	Paid          bool
	PaidAt        pgtype.Timestamptz
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is a priced order line row.
type OrderItem struct {
	ID              int64
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

// User is an account row.
type User struct {
	ID           pgtype.UUID
	Username     string
	PasswordHash string
	FullName     string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
