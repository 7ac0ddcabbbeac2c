package branch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type queryProvider interface {
	ListBranches(ctx context.Context) ([]db.Branch, error)
	CreateBranch(ctx context.Context, arg db.CreateBranchParams) (db.Branch, error)
}

// Service manages store branches.
type Service struct {
	queries queryProvider
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{queries: cfg.Queries}
}

// Branch is the API representation of a store branch.
type Branch struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IsMainBranch bool      `json:"is_main_branch"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns all branches, main branch first.
func (s *Service) List(ctx context.Context) ([]Branch, error) {
	rows, err := s.queries.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(rows))
	for _, row := range rows {
		out = append(out, toBranch(row))
	}
	return out, nil
}

// CreateParams is the create payload for a branch.
type CreateParams struct {
	Name         string `json:"name"`
	IsMainBranch bool   `json:"is_main_branch"`
}

// Create stores a new branch. Marking it as main demotes the current main
// branch.
func (s *Service) Create(ctx context.Context, params CreateParams) (Branch, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return Branch{}, common.NewAppError("BAD_REQUEST", "branch name cannot be empty", http.StatusBadRequest, nil)
	}
	row, err := s.queries.CreateBranch(ctx, db.CreateBranchParams{Name: name, IsMainBranch: params.IsMainBranch})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Branch{}, common.NewAppError("BRANCH_EXISTS", "a branch with that name already exists", http.StatusConflict, err)
		}
		return Branch{}, err
	}
	return toBranch(row), nil
}

func toBranch(row db.Branch) Branch {
	return Branch{
		ID:           db.UUIDString(row.ID),
		Name:         row.Name,
		IsMainBranch: row.IsMainBranch,
		CreatedAt:    row.CreatedAt,
	}
}
