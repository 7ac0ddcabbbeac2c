package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = "id, username, password_hash, full_name, role, active, created_at, updated_at"

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUserByUsername fetches a user account by its login name.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username)
	u, err := scanUser(row)
	if err != nil {
		return User{}, wrapNotFound(err)
	}
	return u, nil
}

// GetUser fetches a user account by id.
func (q *Queries) GetUser(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, wrapNotFound(err)
	}
	return u, nil
}

// ListUsers returns all accounts, alphabetical by username.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListAgents returns active accounts with the Agent role, for customer
// assignment dropdowns.
func (q *Queries) ListAgents(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, "SELECT "+userColumns+" FROM users WHERE role = 'Agent' AND active ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUserParams carries the insert payload for a user account.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	FullName     string
	Role         string
}

// CreateUser inserts an account and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, full_name, role, active) VALUES ($1, $2, $3, $4, TRUE) RETURNING "+userColumns,
		arg.Username, arg.PasswordHash, arg.FullName, arg.Role,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdateUserParams carries the mutable fields of a user account. Empty
// PasswordHash keeps the existing hash.
type UpdateUserParams struct {
	ID           pgtype.UUID
	FullName     string
	Role         string
	Active       bool
	PasswordHash string
}

// UpdateUser updates an account and returns the stored row.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE users SET full_name = $2, role = $3, active = $4,
		 password_hash = CASE WHEN $5 = '' THEN password_hash ELSE $5 END,
		 updated_at = NOW()
		 WHERE id = $1 RETURNING `+userColumns,
		arg.ID, arg.FullName, arg.Role, arg.Active, arg.PasswordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		return User{}, wrapNotFound(err)
	}
	return u, nil
}

// DeleteUser removes an account.
func (q *Queries) DeleteUser(ctx context.Context, id pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
