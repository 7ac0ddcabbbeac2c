package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
)

// Roles recognised by the back office.
const (
	RoleAdmin    = "Admin"
	RoleSubAdmin = "Sub-Admin"
	RoleAgent    = "Agent"
)

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSubAdmin, RoleAgent:
		return true
	}
	return false
}

type queryProvider interface {
	ListUsers(ctx context.Context) ([]db.User, error)
	ListAgents(ctx context.Context) ([]db.User, error)
	GetUser(ctx context.Context, id pgtype.UUID) (db.User, error)
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	UpdateUser(ctx context.Context, arg db.UpdateUserParams) (db.User, error)
	DeleteUser(ctx context.Context, id pgtype.UUID) error
}

// Service manages back office accounts.
type Service struct {
	queries  queryProvider
	validate *validator.Validate
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Logger  zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		queries:  cfg.Queries,
		validate: validator.New(),
		logger:   cfg.Logger,
	}
}

// Account is a user row without its password hash.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccount(u db.User) Account {
	return Account{
		ID:        db.UUIDString(u.ID),
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAccount(row))
	}
	return out, nil
}

// Agent is the minimal account view exposed to non-admin callers for
// customer assignment.
type Agent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Agents returns active accounts with the Agent role.
func (s *Service) Agents(ctx context.Context) ([]Agent, error) {
	rows, err := s.queries.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Agent, 0, len(rows))
	for _, row := range rows {
		out = append(out, Agent{ID: db.UUIDString(row.ID), Username: row.Username})
	}
	return out, nil
}

// RegisterParams carries the payload for a new account.
type RegisterParams struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,max=128"`
	Role     string `json:"role" validate:"required"`
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, params RegisterParams) (Account, error) {
	if err := s.validate.Struct(params); err != nil {
		return Account{}, badRequest("invalid user payload", err)
	}
	if !validRole(params.Role) {
		return Account{}, badRequest("role must be Admin, Sub-Admin, or Agent", nil)
	}
	hash, err := argon2id.CreateHash(params.Password, argon2id.DefaultParams)
	if err != nil {
		return Account{}, err
	}
	created, err := s.queries.CreateUser(ctx, db.CreateUserParams{
		Username:     params.Username,
		PasswordHash: hash,
		FullName:     params.FullName,
		Role:         params.Role,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, common.NewAppError("USERNAME_TAKEN", "username is already registered", http.StatusConflict, err)
		}
		return Account{}, err
	}
	s.logger.Info().Str("username", created.Username).Str("role", created.Role).Msg("user registered")
	return toAccount(created), nil
}

// UpdateParams carries the mutable account fields. An empty Password keeps the
// current one.
type UpdateParams struct {
	FullName string `json:"full_name" validate:"required,max=128"`
	Role     string `json:"role" validate:"required"`
	Active   bool   `json:"active"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// Update modifies an account.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (Account, error) {
	uid, err := db.UUIDFromString(id)
	if err != nil {
		return Account{}, badRequest("user id must be a valid UUID", err)
	}
	if err := s.validate.Struct(params); err != nil {
		return Account{}, badRequest("invalid user payload", err)
	}
	if !validRole(params.Role) {
		return Account{}, badRequest("role must be Admin, Sub-Admin, or Agent", nil)
	}
	hash := ""
	if params.Password != "" {
		hash, err = argon2id.CreateHash(params.Password, argon2id.DefaultParams)
		if err != nil {
			return Account{}, err
		}
	}
	updated, err := s.queries.UpdateUser(ctx, db.UpdateUserParams{
		ID:           uid,
		FullName:     params.FullName,
		Role:         params.Role,
		Active:       params.Active,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Account{}, userNotFound()
		}
		return Account{}, err
	}
	return toAccount(updated), nil
}

// Delete removes an account. The caller cannot delete their own account.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if id == callerID {
		return common.NewAppError("SELF_DELETE", "cannot delete your own account", http.StatusConflict, nil)
	}
	uid, err := db.UUIDFromString(id)
	if err != nil {
		return badRequest("user id must be a valid UUID", err)
	}
	if err := s.queries.DeleteUser(ctx, uid); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return userNotFound()
		}
		return err
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted")
	return nil
}

func badRequest(message string, err error) error {
	return common.NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
}

func userNotFound() error {
	return common.NewAppError("USER_NOT_FOUND", "user not found", http.StatusNotFound, nil)
}
