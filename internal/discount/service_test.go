package discount

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type fakeDiscountQueries struct {
	rules []db.DiscountRule
}

func (f *fakeDiscountQueries) ListDiscountRules(_ context.Context) ([]db.DiscountRule, error) {
	return f.rules, nil
}

func (f *fakeDiscountQueries) CreateDiscountRule(_ context.Context, arg db.CreateDiscountRuleParams) (db.DiscountRule, error) {
	row := db.DiscountRule{
		Name:         arg.Name,
		Kind:         arg.Kind,
		Value:        arg.Value,
		Active:       true,
		PriceLevelID: arg.PriceLevelID,
		ProductIDs:   arg.ProductIDs,
	}
	row.ID.Bytes = uuid.New()
	row.ID.Valid = true
	f.rules = append(f.rules, row)
	return row, nil
}

func (f *fakeDiscountQueries) SetDiscountRuleActive(_ context.Context, id pgtype.UUID, active bool) error {
	for i, row := range f.rules {
		if row.ID == id {
			f.rules[i].Active = active
			return nil
		}
	}
	return db.ErrNotFound
}

func TestCreateRuleValidation(t *testing.T) {
	svc := NewService(ServiceConfig{Queries: &fakeDiscountQueries{}})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{Name: "Over", Kind: "PERCENTAGE", Value: decimal.NewFromInt(150)})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateParams{Name: "Negative", Kind: "FIXED_AMOUNT", Value: decimal.NewFromInt(-5)})
	require.Error(t, err)

	// BUY_GET is not a supported rule kind
	_, err = svc.Create(ctx, CreateParams{Name: "Promo", Kind: "BUY_GET", Value: decimal.NewFromInt(1)})
	require.Error(t, err)

	rule, err := svc.Create(ctx, CreateParams{Name: "Wholesale 10%", Kind: "PERCENTAGE", Value: decimal.NewFromInt(10)})
	require.NoError(t, err)
	require.True(t, rule.Active)
	require.Equal(t, "PERCENTAGE", rule.Kind)
}

func TestCreateRuleWithAssignments(t *testing.T) {
	queries := &fakeDiscountQueries{}
	svc := NewService(ServiceConfig{Queries: queries})

	productID := uuid.NewString()
	rule, err := svc.Create(context.Background(), CreateParams{
		Name:       "Soap 20 off",
		Kind:       "FIXED_AMOUNT",
		Value:      decimal.NewFromInt(20),
		ProductIDs: []string{productID},
	})
	require.NoError(t, err)
	require.Equal(t, []string{productID}, rule.ProductIDs)
}

func TestSetActive(t *testing.T) {
	queries := &fakeDiscountQueries{}
	svc := NewService(ServiceConfig{Queries: queries})

	rule, err := svc.Create(context.Background(), CreateParams{Name: "Wholesale 10%", Kind: "PERCENTAGE", Value: decimal.NewFromInt(10)})
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(context.Background(), rule.ID, false))
	require.False(t, queries.rules[0].Active)

	require.Error(t, svc.SetActive(context.Background(), uuid.NewString(), true))
}
