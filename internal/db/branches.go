package db

import (
	"context"
	"fmt"
)

const branchColumns = "id, name, is_main_branch, created_at"

// ListBranches returns all branches, main branch first.
func (q *Queries) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := q.db.Query(ctx, "SELECT "+branchColumns+" FROM branches ORDER BY is_main_branch DESC, name")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()
	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.IsMainBranch, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBranchParams carries the insert payload for a branch.
type CreateBranchParams struct {
	Name         string
	IsMainBranch bool
}

// CreateBranch inserts a branch. Promoting a branch to main demotes the
// current main branch in the same transaction, so exactly one main branch
// exists at any time.
func (q *Queries) CreateBranch(ctx context.Context, arg CreateBranchParams) (Branch, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return Branch{}, fmt.Errorf("create branch: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if arg.IsMainBranch {
		if _, err := tx.Exec(ctx, "UPDATE branches SET is_main_branch = FALSE WHERE is_main_branch"); err != nil {
			return Branch{}, fmt.Errorf("demote main branch: %w", err)
		}
	}
	var b Branch
	err = tx.QueryRow(ctx,
		"INSERT INTO branches (name, is_main_branch) VALUES ($1, $2) RETURNING "+branchColumns,
		arg.Name, arg.IsMainBranch,
	).Scan(&b.ID, &b.Name, &b.IsMainBranch, &b.CreatedAt)
	if err != nil {
		return Branch{}, fmt.Errorf("create branch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Branch{}, fmt.Errorf("create branch: commit: %w", err)
	}
	return b, nil
}
