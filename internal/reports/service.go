package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type queryProvider interface {
	SalesTotalsBetween(ctx context.Context, from, to time.Time) (db.SalesTotals, error)
	TopProductsBetween(ctx context.Context, from, to time.Time, limit int) ([]db.TopProductRow, error)
	InactiveCustomersSince(ctx context.Context, cutoff time.Time) ([]db.InactiveCustomerRow, error)
}

// Service answers reporting queries with short-lived Redis caching.
type Service struct {
	queries queryProvider
	redis   *redis.Client
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Redis   *redis.Client
	TTL     time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{queries: cfg.Queries, redis: cfg.Redis, ttl: ttl, logger: cfg.Logger, now: now}
}

// TopProduct is a best seller entry in the sales summary.
type TopProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SalesSummary aggregates revenue for a reporting period.
type SalesSummary struct {
	Period        string          `json:"period"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	OrderCount    int             `json:"order_count"`
	Revenue       decimal.Decimal `json:"revenue"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TopProducts   []TopProduct    `json:"top_products"`
}

// Summary computes the sales summary for daily, weekly, or monthly windows
// ending now.
func (s *Service) Summary(ctx context.Context, period string) (SalesSummary, error) {
	now := s.now()
	var from time.Time
	switch period {
	case "daily":
		from = now.AddDate(0, 0, -1)
	case "weekly":
		from = now.AddDate(0, 0, -7)
	case "monthly":
		from = now.AddDate(0, -1, 0)
	default:
		return SalesSummary{}, &common.AppError{Code: "BAD_REQUEST", Message: "period must be daily, weekly, or monthly", HTTPStatus: http.StatusBadRequest}
	}

	key := fmt.Sprintf("reports:summary:%s:%s", period, now.Format("2006-01-02T15:04"))
	var cached SalesSummary
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return cached, nil
	}

	totals, err := s.queries.SalesTotalsBetween(ctx, from, now)
	if err != nil {
		return SalesSummary{}, err
	}
	top, err := s.queries.TopProductsBetween(ctx, from, now, 5)
	if err != nil {
		return SalesSummary{}, err
	}
	summary := SalesSummary{
		Period:        period,
		From:          from,
		To:            now,
		OrderCount:    totals.OrderCount,
		Revenue:       totals.Revenue,
		TotalDiscount: totals.TotalDiscount,
		TopProducts:   make([]TopProduct, 0, len(top)),
	}
	for _, row := range top {
		summary.TopProducts = append(summary.TopProducts, TopProduct{
			ProductID: db.UUIDString(row.ProductID),
			Name:      row.Name,
			Qty:       row.Qty,
			Revenue:   row.Revenue,
		})
	}
	s.cacheSet(ctx, key, summary)
	return summary, nil
}

// InactiveCustomer is a customer without recent orders.
type InactiveCustomer struct {
	CustomerID string     `json:"customer_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	LastOrder  *time.Time `json:"last_order,omitempty"`
}

// InactiveCustomers returns customers with no orders in the last N days.
func (s *Service) InactiveCustomers(ctx context.Context, days int) ([]InactiveCustomer, error) {
	if days <= 0 {
		return nil, &common.AppError{Code: "BAD_REQUEST", Message: "days must be a positive integer", HTTPStatus: http.StatusBadRequest}
	}
	cutoff := s.now().AddDate(0, 0, -days)
	rows, err := s.queries.InactiveCustomersSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]InactiveCustomer, 0, len(rows))
	for _, row := range rows {
		entry := InactiveCustomer{
			CustomerID: db.UUIDString(row.CustomerID),
			Name:       row.Name,
			Phone:      row.Phone,
		}
		if row.LastOrder.Valid {
			last := row.LastOrder.Time
			entry.LastOrder = &last
		}
		out = append(out, entry)
	}
	return out, nil
}

// MonthSales is one side of a sales comparison.
type MonthSales struct {
	Month      string          `json:"month"`
	OrderCount int             `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// SalesComparison contrasts two calendar months.
type SalesComparison struct {
	MonthA MonthSales      `json:"month_a"`
	MonthB MonthSales      `json:"month_b"`
	Delta  decimal.Decimal `json:"delta"`
}

// CompareMonths compares revenue between two months given as YYYY-MM.
func (s *Service) CompareMonths(ctx context.Context, monthA, monthB string) (SalesComparison, error) {
	a, err := s.monthSales(ctx, monthA)
	if err != nil {
		return SalesComparison{}, err
	}
	b, err := s.monthSales(ctx, monthB)
	if err != nil {
		return SalesComparison{}, err
	}
	return SalesComparison{MonthA: a, MonthB: b, Delta: b.Revenue.Sub(a.Revenue)}, nil
}

func (s *Service) monthSales(ctx context.Context, month string) (MonthSales, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return MonthSales{}, &common.AppError{Code: "BAD_REQUEST", Message: "month must be formatted YYYY-MM", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	totals, err := s.queries.SalesTotalsBetween(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return MonthSales{}, err
	}
	return MonthSales{Month: month, OrderCount: totals.OrderCount, Revenue: totals.Revenue}, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("report cache read failed")
		}
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("report cache write failed")
	}
}
