package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies how a discount rule computes its per-unit deduction.
type Kind string

const (
	// KindPercentage deducts a percentage of the unit price, value in [0,100].
	KindPercentage Kind = "PERCENTAGE"
	// KindFixedAmount deducts a fixed peso amount per unit, value >= 0.
	KindFixedAmount Kind = "FIXED_AMOUNT"
)

// ErrEmptyCart is returned when pricing is requested for a cart with no lines.
var ErrEmptyCart = errors.New("pricing: cart is empty")

// ErrInvalidQuantity is returned when a cart line carries a non-positive quantity.
var ErrInvalidQuantity = errors.New("pricing: quantity must be positive")

// ErrNegativeDiscount is returned when a cart line carries a negative manual
// discount.
var ErrNegativeDiscount = errors.New("pricing: manual discount must not be negative")

// ProductNotFoundError indicates a cart line references a product the catalog
// cannot resolve. The whole pricing call fails; partial totals are never
// returned.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("pricing: product %s not found", e.ProductID)
}

// InsufficientStockError indicates a requested quantity exceeds available
// stock. The engine never clamps silently: a cashier-facing total must match
// what can actually be committed.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("pricing: product %s requested %d exceeds stock %d", e.ProductID, e.Requested, e.Available)
}

// InvalidRuleError describes a discount rule whose value is outside its valid
// range. Malformed rules are excluded from consideration rather than failing
// the computation; a broken rule must not block every checkout.
type InvalidRuleError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("pricing: rule %s invalid: %s", e.RuleID, e.Reason)
}

// Product is the catalog snapshot the engine prices against.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int
	Category string
	Active   bool
}

// Rule captures a discount rule and its scopes. An empty ProductIDs slice
// means the rule applies to every product; an empty PriceLevelID means it
// applies to every customer.
type Rule struct {
	ID           string
	Name         string
	Kind         Kind
	Value        decimal.Decimal
	Active       bool
	ProductIDs   []string
	PriceLevelID string
}

// CartLine is a single raw cart entry prior to pricing.
type CartLine struct {
	ProductID      string
	Qty            int
	ManualDiscount decimal.Decimal
}

// PricedLine is the priced counterpart of a cart line.
type PricedLine struct {
	ProductID       string          `json:"id"`
	Name            string          `json:"name"`
	Qty             int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"originalPrice"`
	AppliedRule     *AppliedRule    `json:"appliedDiscount,omitempty"`
	DiscountPerUnit decimal.Decimal `json:"discountPerUnit"`
	FinalUnitPrice  decimal.Decimal `json:"finalPrice"`
	LineTotal       decimal.Decimal `json:"lineTotal"`
}

// AppliedRule names the rule that produced a line's discount. Manual cashier
// overrides have no rule and leave this nil.
type AppliedRule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"type"`
}

// Quote aggregates the priced lines and order totals.
type Quote struct {
	Lines         []PricedLine    `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
}

// Context carries the customer-dependent inputs of a pricing call.
type Context struct {
	PriceLevelID string
}

// Catalog resolves products by identifier. The engine never mutates an
// implementation.
type Catalog interface {
	Product(id string) (Product, bool)
}

// CatalogMap adapts an in-memory snapshot to the Catalog interface.
type CatalogMap map[string]Product

// Product implements Catalog.
func (m CatalogMap) Product(id string) (Product, bool) {
	p, ok := m[id]
	return p, ok
}

// Engine prices carts. It holds no state between calls; identical inputs
// always produce identical quotes.
type Engine struct {
	// OnInvalidRule, when set, receives each malformed rule that was skipped.
	OnInvalidRule func(InvalidRuleError)
}

var hundred = decimal.NewFromInt(100)

// Price computes the quote for a cart. Any unresolvable product or stock
// violation aborts the whole call.
func (e Engine) Price(cart []CartLine, ctx Context, catalog Catalog, rules []Rule) (Quote, error) {
	if len(cart) == 0 {
		return Quote{}, ErrEmptyCart
	}
	usable := e.filterRules(rules)

	quote := Quote{
		Lines:         make([]PricedLine, 0, len(cart)),
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		GrandTotal:    decimal.Zero,
	}
	for _, line := range cart {
		if line.Qty <= 0 {
			return Quote{}, fmt.Errorf("product %s: %w", line.ProductID, ErrInvalidQuantity)
		}
		if line.ManualDiscount.IsNegative() {
			return Quote{}, fmt.Errorf("product %s: %w", line.ProductID, ErrNegativeDiscount)
		}
		product, ok := catalog.Product(line.ProductID)
		if !ok {
			return Quote{}, &ProductNotFoundError{ProductID: line.ProductID}
		}
		if line.Qty > product.Stock {
			return Quote{}, &InsufficientStockError{ProductID: line.ProductID, Requested: line.Qty, Available: product.Stock}
		}

		priced := priceLine(line, product, selectRule(line, product, ctx, usable))
		quote.Lines = append(quote.Lines, priced)
		gross := priced.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		quote.Subtotal = quote.Subtotal.Add(gross)
		quote.TotalDiscount = quote.TotalDiscount.Add(gross.Sub(priced.LineTotal))
		quote.GrandTotal = quote.GrandTotal.Add(priced.LineTotal)
	}
	return quote, nil
}

// filterRules drops inactive and malformed rules, reporting the malformed
// ones through the hook.
func (e Engine) filterRules(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if reason, ok := validateRule(r); !ok {
			if e.OnInvalidRule != nil {
				e.OnInvalidRule(InvalidRuleError{RuleID: r.ID, Reason: reason})
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func validateRule(r Rule) (reason string, ok bool) {
	switch r.Kind {
	case KindPercentage:
		if r.Value.IsNegative() || r.Value.GreaterThan(hundred) {
			return "percentage outside [0,100]", false
		}
	case KindFixedAmount:
		if r.Value.IsNegative() {
			return "negative fixed amount", false
		}
	default:
		return fmt.Sprintf("unknown kind %q", string(r.Kind)), false
	}
	return "", true
}

// selectRule picks at most one rule for the line. A manual override wins
// outright. Otherwise a product-scoped rule matching the customer's price
// level beats a level-wide rule, and a rule bound to the price level beats an
// unscoped one. Ties resolve to the first rule in input order.
func selectRule(line CartLine, product Product, ctx Context, rules []Rule) *Rule {
	if line.ManualDiscount.IsPositive() {
		return nil
	}
	var best *Rule
	bestRank := -1
	for i := range rules {
		r := &rules[i]
		if r.PriceLevelID != "" && r.PriceLevelID != ctx.PriceLevelID {
			continue
		}
		scoped := len(r.ProductIDs) > 0
		if scoped && !containsProduct(r.ProductIDs, product.ID) {
			continue
		}
		rank := 0
		if scoped {
			rank += 2
		}
		if r.PriceLevelID != "" {
			rank++
		}
		if rank > bestRank {
			best = r
			bestRank = rank
		}
	}
	return best
}

func containsProduct(ids []string, id string) bool {
	for _, el := range ids {
		if el == id {
			return true
		}
	}
	return false
}

// priceLine computes the per-unit discount and line total. The per-unit
// discount is kept at full precision through the multiplication and rounded
// half-up to two decimals once, at the line level; rounding per unit first
// would compound the error across the quantity. The per-unit fields are
// rounded for display only and LineTotal is the authoritative amount.
func priceLine(line CartLine, product Product, rule *Rule) PricedLine {
	unit := product.Price.Round(2)
	var discount decimal.Decimal
	var applied *AppliedRule

	switch {
	case line.ManualDiscount.IsPositive():
		discount = line.ManualDiscount
	case rule != nil:
		switch rule.Kind {
		case KindPercentage:
			discount = unit.Mul(rule.Value).Div(hundred)
		case KindFixedAmount:
			discount = rule.Value
		}
		applied = &AppliedRule{ID: rule.ID, Name: rule.Name, Kind: rule.Kind}
	default:
		discount = decimal.Zero
	}

	discount = clamp(discount, unit)
	final := unit.Sub(discount)
	qty := decimal.NewFromInt(int64(line.Qty))
	return PricedLine{
		ProductID:       product.ID,
		Name:            product.Name,
		Qty:             line.Qty,
		UnitPrice:       unit,
		AppliedRule:     applied,
		DiscountPerUnit: discount.Round(2),
		FinalUnitPrice:  final.Round(2),
		LineTotal:       final.Mul(qty).Round(2),
	}
}

// clamp bounds a per-unit discount to [0, unit] so a discount can never push
// a line negative.
func clamp(d, unit decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(unit) {
		return unit
	}
	return d
}
