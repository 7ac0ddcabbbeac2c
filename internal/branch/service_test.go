package branch

import (
	"context"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

type fakeBranchQueries struct {
	branches  []db.Branch
	createErr error
	created   *db.CreateBranchParams
}

func (f *fakeBranchQueries) ListBranches(ctx context.Context) ([]db.Branch, error) {
	return f.branches, nil
}

func (f *fakeBranchQueries) CreateBranch(ctx context.Context, arg db.CreateBranchParams) (db.Branch, error) {
	if f.createErr != nil {
		return db.Branch{}, f.createErr
	}
	f.created = &arg
	return db.Branch{Name: arg.Name, IsMainBranch: arg.IsMainBranch}, nil
}

func TestCreateBranchTrimsAndStoresName(t *testing.T) {
	queries := &fakeBranchQueries{}
	svc := NewService(ServiceConfig{Queries: queries})

	created, err := svc.Create(context.Background(), CreateParams{Name: "  Main Warehouse  ", IsMainBranch: true})
	require.NoError(t, err)
	require.Equal(t, "Main Warehouse", created.Name)
	require.True(t, created.IsMainBranch)
	require.NotNil(t, queries.created)
	require.Equal(t, "Main Warehouse", queries.created.Name)
}

func TestCreateBranchRejectsEmptyName(t *testing.T) {
	svc := NewService(ServiceConfig{Queries: &fakeBranchQueries{}})

	_, err := svc.Create(context.Background(), CreateParams{Name: "   "})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestCreateBranchMapsDuplicateName(t *testing.T) {
	queries := &fakeBranchQueries{createErr: &pgconn.PgError{Code: "23505"}}
	svc := NewService(ServiceConfig{Queries: queries})

	_, err := svc.Create(context.Background(), CreateParams{Name: "Main Warehouse"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BRANCH_EXISTS", appErr.Code)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestListBranchesMapsRows(t *testing.T) {
	id, err := db.UUIDFromString("6f1e8a30-0d6a-4a6e-9a0e-333333333333")
	require.NoError(t, err)
	queries := &fakeBranchQueries{branches: []db.Branch{{ID: id, Name: "Main Warehouse", IsMainBranch: true}}}
	svc := NewService(ServiceConfig{Queries: queries})

	branches, listErr := svc.List(context.Background())
	require.NoError(t, listErr)
	require.Len(t, branches, 1)
	require.Equal(t, "6f1e8a30-0d6a-4a6e-9a0e-333333333333", branches[0].ID)
	require.True(t, branches[0].IsMainBranch)
}
