package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const ruleColumns = "r.id, r.name, r.kind, r.value, r.active, r.price_level_id, r.created_at"

// ListDiscountRules returns all rules with their product assignments.
func (q *Queries) ListDiscountRules(ctx context.Context) ([]DiscountRule, error) {
	return q.queryRules(ctx, "SELECT "+ruleColumns+" FROM discount_rules r ORDER BY r.created_at DESC")
}

// ListActiveDiscountRules returns only active rules with assignments; this is
// the rule set the pricing engine consumes.
func (q *Queries) ListActiveDiscountRules(ctx context.Context) ([]DiscountRule, error) {
	return q.queryRules(ctx, "SELECT "+ruleColumns+" FROM discount_rules r WHERE r.active ORDER BY r.created_at")
}

func (q *Queries) queryRules(ctx context.Context, sql string) ([]DiscountRule, error) {
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list discount rules: %w", err)
	}
	defer rows.Close()
	var out []DiscountRule
	for rows.Next() {
		var r DiscountRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind, &r.Value, &r.Active, &r.PriceLevelID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan discount rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := q.attachRuleProducts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queries) attachRuleProducts(ctx context.Context, rules []DiscountRule) error {
	if len(rules) == 0 {
		return nil
	}
	ids := make([]pgtype.UUID, len(rules))
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
		index[UUIDString(r.ID)] = i
	}
	rows, err := q.db.Query(ctx, "SELECT rule_id, product_id FROM rule_products WHERE rule_id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("list rule products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ruleID, productID pgtype.UUID
		if err := rows.Scan(&ruleID, &productID); err != nil {
			return fmt.Errorf("scan rule product: %w", err)
		}
		if i, ok := index[UUIDString(ruleID)]; ok {
			rules[i].ProductIDs = append(rules[i].ProductIDs, productID)
		}
	}
	return rows.Err()
}

// CreateDiscountRuleParams carries the insert payload for a discount rule.
type CreateDiscountRuleParams struct {
	Name         string
	Kind         string
	Value        decimal.Decimal
	PriceLevelID pgtype.UUID
	ProductIDs   []pgtype.UUID
}

// CreateDiscountRule inserts the rule and its product assignments in a single
// transaction, so a failed assignment never leaves behind a rule with an empty
// scope (which would apply store-wide).
func (q *Queries) CreateDiscountRule(ctx context.Context, arg CreateDiscountRuleParams) (DiscountRule, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return DiscountRule{}, fmt.Errorf("create discount rule: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var r DiscountRule
	err = tx.QueryRow(ctx,
		"INSERT INTO discount_rules (name, kind, value, active, price_level_id) VALUES ($1, $2, $3, TRUE, $4) RETURNING id, name, kind, value, active, price_level_id, created_at",
		arg.Name, arg.Kind, arg.Value, arg.PriceLevelID,
	).Scan(&r.ID, &r.Name, &r.Kind, &r.Value, &r.Active, &r.PriceLevelID, &r.CreatedAt)
	if err != nil {
		return DiscountRule{}, fmt.Errorf("create discount rule: %w", err)
	}
	for _, pid := range arg.ProductIDs {
		if _, err := tx.Exec(ctx, "INSERT INTO rule_products (rule_id, product_id) VALUES ($1, $2)", r.ID, pid); err != nil {
			return DiscountRule{}, fmt.Errorf("assign rule product: %w", err)
		}
		r.ProductIDs = append(r.ProductIDs, pid)
	}
	if err := tx.Commit(ctx); err != nil {
		return DiscountRule{}, fmt.Errorf("create discount rule: commit: %w", err)
	}
	return r, nil
}

// SetDiscountRuleActive flips a rule's active flag.
func (q *Queries) SetDiscountRuleActive(ctx context.Context, id pgtype.UUID, active bool) error {
	tag, err := q.db.Exec(ctx, "UPDATE discount_rules SET active = $2 WHERE id = $1", id, active)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
