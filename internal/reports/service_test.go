package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type fakeReportQueries struct {
	totals       db.SalesTotals
	top          []db.TopProductRow
	inactive     []db.InactiveCustomerRow
	totalsCalls  int
	lastFrom     time.Time
	lastTo       time.Time
	inactiveFrom time.Time
}

func (f *fakeReportQueries) SalesTotalsBetween(_ context.Context, from, to time.Time) (db.SalesTotals, error) {
	f.totalsCalls++
	f.lastFrom, f.lastTo = from, to
	return f.totals, nil
}

func (f *fakeReportQueries) TopProductsBetween(_ context.Context, _, _ time.Time, _ int) ([]db.TopProductRow, error) {
	return f.top, nil
}

func (f *fakeReportQueries) InactiveCustomersSince(_ context.Context, cutoff time.Time) ([]db.InactiveCustomerRow, error) {
	f.inactiveFrom = cutoff
	return f.inactive, nil
}

func newReportService(t *testing.T, queries *fakeReportQueries, now time.Time) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(ServiceConfig{
		Queries: queries,
		Redis:   client,
		TTL:     time.Minute,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return now },
	})
}

func TestSummaryWindows(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	queries := &fakeReportQueries{
		totals: db.SalesTotals{OrderCount: 4, Revenue: decimal.RequireFromString("1080.00"), TotalDiscount: decimal.RequireFromString("120.00")},
	}
	svc := newReportService(t, queries, now)

	summary, err := svc.Summary(context.Background(), "weekly")
	require.NoError(t, err)
	require.Equal(t, "weekly", summary.Period)
	require.Equal(t, 4, summary.OrderCount)
	require.Equal(t, now.AddDate(0, 0, -7), queries.lastFrom)
	require.Equal(t, now, queries.lastTo)

	_, err = svc.Summary(context.Background(), "hourly")
	require.Error(t, err)
}

func TestSummaryIsCached(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	queries := &fakeReportQueries{
		totals: db.SalesTotals{OrderCount: 2, Revenue: decimal.RequireFromString("500.00")},
		top: []db.TopProductRow{
			{ProductID: pgtype.UUID{Valid: true}, Name: "Sardines 155g", Qty: 30, Revenue: decimal.RequireFromString("450.00")},
		},
	}
	svc := newReportService(t, queries, now)

	first, err := svc.Summary(context.Background(), "daily")
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), "daily")
	require.NoError(t, err)

	require.Equal(t, 1, queries.totalsCalls)
	require.Equal(t, first.Revenue.String(), second.Revenue.String())
	require.Len(t, second.TopProducts, 1)
	require.Equal(t, "Sardines 155g", second.TopProducts[0].Name)
}

func TestInactiveCustomers(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	last := pgtype.Timestamptz{Time: now.AddDate(0, 0, -90), Valid: true}
	queries := &fakeReportQueries{
		inactive: []db.InactiveCustomerRow{
			{CustomerID: pgtype.UUID{Valid: true}, Name: "Aling Nena Store", Phone: "0917", LastOrder: last},
			{CustomerID: pgtype.UUID{Valid: true}, Name: "New Store"},
		},
	}
	svc := newReportService(t, queries, now)

	rows, err := svc.InactiveCustomers(context.Background(), 60)
	require.NoError(t, err)
	require.Equal(t, now.AddDate(0, 0, -60), queries.inactiveFrom)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].LastOrder)
	require.Nil(t, rows[1].LastOrder)

	_, err = svc.InactiveCustomers(context.Background(), 0)
	require.Error(t, err)
}

func TestCompareMonths(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	queries := &fakeReportQueries{
		totals: db.SalesTotals{OrderCount: 3, Revenue: decimal.RequireFromString("900.00")},
	}
	svc := newReportService(t, queries, now)

	cmp, err := svc.CompareMonths(context.Background(), "2026-01", "2026-02")
	require.NoError(t, err)
	require.Equal(t, "2026-01", cmp.MonthA.Month)
	require.Equal(t, "2026-02", cmp.MonthB.Month)
	require.True(t, cmp.Delta.IsZero())

	_, err = svc.CompareMonths(context.Background(), "January", "2026-02")
	require.Error(t, err)
}
