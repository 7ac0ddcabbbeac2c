package pricing_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixtureCatalog() pricing.CatalogMap {
	return pricing.CatalogMap{
		"P1": {ID: "P1", Name: "Blue Soap Bar", Price: dec("100.00"), Stock: 10, Active: true},
		"P2": {ID: "P2", Name: "Dish Liquid 1L", Price: dec("59.75"), Stock: 200, Active: true},
		"P3": {ID: "P3", Name: "Bleach Gallon", Price: dec("185.50"), Stock: 35, Active: true},
	}
}

func TestPercentageRuleForPriceLevel(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "R1", Name: "Wholesale 10%", Kind: pricing.KindPercentage, Value: dec("10"), Active: true, PriceLevelID: "L1"},
	}
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 3}}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{PriceLevelID: "L1"}, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)

	line := quote.Lines[0]
	require.True(t, line.DiscountPerUnit.Equal(dec("10.00")), "discount per unit %s", line.DiscountPerUnit)
	require.True(t, line.FinalUnitPrice.Equal(dec("90.00")), "final unit price %s", line.FinalUnitPrice)
	require.True(t, line.LineTotal.Equal(dec("270.00")), "line total %s", line.LineTotal)
	require.NotNil(t, line.AppliedRule)
	require.Equal(t, "R1", line.AppliedRule.ID)
}

func TestRoundingHappensOnceAtLineLevel(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "R1", Name: "Wholesale 10%", Kind: pricing.KindPercentage, Value: dec("10"), Active: true},
	}
	// 10% of 59.75 is 5.975 per unit. Rounding that to 5.98 before the
	// multiplication would drift by half a centavo per unit; at qty 100 the
	// line must come to (59.75 - 5.975) * 100 = 5377.50, not 5377.00.
	cart := []pricing.CartLine{{ProductID: "P2", Qty: 100}}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), rules)
	require.NoError(t, err)

	line := quote.Lines[0]
	require.True(t, line.LineTotal.Equal(dec("5377.50")), "line total %s", line.LineTotal)
	require.True(t, quote.Subtotal.Equal(dec("5975.00")), "subtotal %s", quote.Subtotal)
	require.True(t, quote.TotalDiscount.Equal(dec("597.50")), "total discount %s", quote.TotalDiscount)
	require.True(t, quote.GrandTotal.Equal(dec("5377.50")), "grand total %s", quote.GrandTotal)
}

func TestManualOverrideWinsOverRules(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "R1", Name: "Wholesale 10%", Kind: pricing.KindPercentage, Value: dec("10"), Active: true, PriceLevelID: "L1"},
	}
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 3, ManualDiscount: dec("15.00")}}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{PriceLevelID: "L1"}, fixtureCatalog(), rules)
	require.NoError(t, err)

	line := quote.Lines[0]
	require.Nil(t, line.AppliedRule)
	require.True(t, line.FinalUnitPrice.Equal(dec("85.00")), "final unit price %s", line.FinalUnitPrice)
	require.True(t, line.LineTotal.Equal(dec("255.00")), "line total %s", line.LineTotal)
}

func TestProductScopedRuleBeatsLevelWideRule(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "WIDE", Name: "Level 5%", Kind: pricing.KindPercentage, Value: dec("5"), Active: true, PriceLevelID: "L1"},
		{ID: "SCOPED", Name: "Soap 20 off", Kind: pricing.KindFixedAmount, Value: dec("20"), Active: true, PriceLevelID: "L1", ProductIDs: []string{"P1"}},
	}
	cart := []pricing.CartLine{
		{ProductID: "P1", Qty: 1},
		{ProductID: "P2", Qty: 1},
	}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{PriceLevelID: "L1"}, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Equal(t, "SCOPED", quote.Lines[0].AppliedRule.ID)
	require.Equal(t, "WIDE", quote.Lines[1].AppliedRule.ID)
}

func TestLevelBoundRuleBeatsUnscopedRule(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "ALL", Name: "Storewide 2%", Kind: pricing.KindPercentage, Value: dec("2"), Active: true},
		{ID: "L1ONLY", Name: "Level 8%", Kind: pricing.KindPercentage, Value: dec("8"), Active: true, PriceLevelID: "L1"},
	}
	cart := []pricing.CartLine{{ProductID: "P2", Qty: 2}}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{PriceLevelID: "L1"}, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Equal(t, "L1ONLY", quote.Lines[0].AppliedRule.ID)

	// Without a price level only the unscoped rule applies.
	quote, err = pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Equal(t, "ALL", quote.Lines[0].AppliedRule.ID)
}

func TestFixedAmountClampedToUnitPrice(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "BIG", Name: "Oversized", Kind: pricing.KindFixedAmount, Value: dec("999"), Active: true},
	}
	cart := []pricing.CartLine{{ProductID: "P2", Qty: 4}}

	quote, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), rules)
	require.NoError(t, err)

	line := quote.Lines[0]
	require.True(t, line.FinalUnitPrice.IsZero(), "final unit price %s", line.FinalUnitPrice)
	require.True(t, line.LineTotal.IsZero())
	require.True(t, line.DiscountPerUnit.Equal(dec("59.75")))
}

func TestManualDiscountClamped(t *testing.T) {
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 2, ManualDiscount: dec("150.00")}}
	quote, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), nil)
	require.NoError(t, err)
	require.True(t, quote.Lines[0].FinalUnitPrice.IsZero())
	require.True(t, quote.GrandTotal.IsZero())
}

func TestInsufficientStock(t *testing.T) {
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 11}}
	_, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), nil)

	var stockErr *pricing.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "P1", stockErr.ProductID)
	require.Equal(t, 11, stockErr.Requested)
	require.Equal(t, 10, stockErr.Available)
}

func TestProductNotFoundAbortsWholeCall(t *testing.T) {
	cart := []pricing.CartLine{
		{ProductID: "P1", Qty: 1},
		{ProductID: "GHOST", Qty: 1},
	}
	_, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), nil)

	var nfErr *pricing.ProductNotFoundError
	require.ErrorAs(t, err, &nfErr)
	require.Equal(t, "GHOST", nfErr.ProductID)
}

func TestEmptyCartRejected(t *testing.T) {
	_, err := pricing.Engine{}.Price(nil, pricing.Context{}, fixtureCatalog(), nil)
	require.ErrorIs(t, err, pricing.ErrEmptyCart)
}

func TestNonPositiveQuantityRejected(t *testing.T) {
	_, err := pricing.Engine{}.Price([]pricing.CartLine{{ProductID: "P1", Qty: 0}}, pricing.Context{}, fixtureCatalog(), nil)
	require.ErrorIs(t, err, pricing.ErrInvalidQuantity)
}

func TestNegativeManualDiscountRejected(t *testing.T) {
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 1, ManualDiscount: dec("-5.00")}}
	_, err := pricing.Engine{}.Price(cart, pricing.Context{}, fixtureCatalog(), nil)
	require.ErrorIs(t, err, pricing.ErrNegativeDiscount)
}

func TestInvalidRulesSkippedAndReported(t *testing.T) {
	var skipped []pricing.InvalidRuleError
	engine := pricing.Engine{OnInvalidRule: func(e pricing.InvalidRuleError) { skipped = append(skipped, e) }}

	rules := []pricing.Rule{
		{ID: "NEG", Name: "Bad percent", Kind: pricing.KindPercentage, Value: dec("-5"), Active: true},
		{ID: "OVER", Name: "Over percent", Kind: pricing.KindPercentage, Value: dec("150"), Active: true},
		{ID: "BUYGET", Name: "Promo", Kind: pricing.Kind("BUY_GET"), Value: dec("1"), Active: true},
		{ID: "OK", Name: "Good 10%", Kind: pricing.KindPercentage, Value: dec("10"), Active: true},
		{ID: "OFF", Name: "Disabled", Kind: pricing.KindFixedAmount, Value: dec("5"), Active: false},
	}
	cart := []pricing.CartLine{{ProductID: "P1", Qty: 1}}

	quote, err := pricing.Engine(engine).Price(cart, pricing.Context{}, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Equal(t, "OK", quote.Lines[0].AppliedRule.ID)
	require.Len(t, skipped, 3)
}

func TestIdempotence(t *testing.T) {
	rules := []pricing.Rule{
		{ID: "R1", Name: "Wholesale 10%", Kind: pricing.KindPercentage, Value: dec("10"), Active: true, PriceLevelID: "L1"},
	}
	cart := []pricing.CartLine{
		{ProductID: "P1", Qty: 3},
		{ProductID: "P3", Qty: 2, ManualDiscount: dec("5.25")},
	}
	ctx := pricing.Context{PriceLevelID: "L1"}

	first, err := pricing.Engine{}.Price(cart, ctx, fixtureCatalog(), rules)
	require.NoError(t, err)
	second, err := pricing.Engine{}.Price(cart, ctx, fixtureCatalog(), rules)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestReconciliationOverGeneratedCarts prices randomly generated carts and
// asserts the accounting identities: grand total equals subtotal minus total
// discount within one centavo, and no line is negative.
func TestReconciliationOverGeneratedCarts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerance := dec("0.01")

	catalog := pricing.CatalogMap{}
	var rules []pricing.Rule
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("P%02d", i)
		price := decimal.NewFromInt(rng.Int63n(50000)).Div(hundredDec())
		catalog[id] = pricing.Product{ID: id, Name: "Product " + id, Price: price, Stock: 1 + rng.Intn(500), Active: true}
		if i%3 == 0 {
			rules = append(rules, pricing.Rule{
				ID:           fmt.Sprintf("R%02d", i),
				Name:         "Rule " + id,
				Kind:         pricing.KindPercentage,
				Value:        decimal.NewFromInt(rng.Int63n(101)),
				Active:       true,
				PriceLevelID: "L1",
				ProductIDs:   []string{id},
			})
		} else if i%3 == 1 {
			rules = append(rules, pricing.Rule{
				ID:     fmt.Sprintf("R%02d", i),
				Name:   "Fixed " + id,
				Kind:   pricing.KindFixedAmount,
				Value:  decimal.NewFromInt(rng.Int63n(20000)).Div(hundredDec()),
				Active: true,
			})
		}
	}

	for trial := 0; trial < 200; trial++ {
		var cart []pricing.CartLine
		for id, p := range catalog {
			if rng.Intn(3) != 0 {
				continue
			}
			line := pricing.CartLine{ProductID: id, Qty: 1 + rng.Intn(p.Stock)}
			if rng.Intn(4) == 0 {
				line.ManualDiscount = decimal.NewFromInt(rng.Int63n(10000)).Div(hundredDec())
			}
			cart = append(cart, line)
		}
		if len(cart) == 0 {
			continue
		}
		ctx := pricing.Context{}
		if rng.Intn(2) == 0 {
			ctx.PriceLevelID = "L1"
		}

		quote, err := pricing.Engine{}.Price(cart, ctx, catalog, rules)
		require.NoError(t, err)

		diff := quote.Subtotal.Sub(quote.TotalDiscount).Sub(quote.GrandTotal).Abs()
		require.True(t, diff.LessThanOrEqual(tolerance), "trial %d: subtotal %s discount %s total %s", trial, quote.Subtotal, quote.TotalDiscount, quote.GrandTotal)
		for _, line := range quote.Lines {
			require.False(t, line.FinalUnitPrice.IsNegative(), "negative unit price on %s", line.ProductID)
			require.False(t, line.LineTotal.IsNegative(), "negative line total on %s", line.ProductID)
		}
	}
}

func hundredDec() decimal.Decimal { return decimal.NewFromInt(100) }
