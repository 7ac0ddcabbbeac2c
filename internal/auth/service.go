package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/obs"
)

const (
	defaultAccessTTL = 8 * time.Hour
	roleClaim        = "role"
)

type queryProvider interface {
	GetUserByUsername(ctx context.Context, username string) (db.User, error)
}

// Service verifies credentials and issues access tokens.
type Service struct {
	queries   queryProvider
	secret    []byte
	accessTTL time.Duration
	issuer    string
	audience  string
	signer    jwa.SignatureAlgorithm
	logger    zerolog.Logger
	now       func() time.Time
}

// ServiceConfig configures the auth service.
type ServiceConfig struct {
	Queries        queryProvider
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	Logger         zerolog.Logger
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("auth: queries is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "bughaw-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "bughaw-frontend"
	}
	return &Service{
		queries:   cfg.Queries,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		issuer:    issuer,
		audience:  audience,
		signer:    jwa.HS256,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// User is the safe subset of a user account returned to clients.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// LoginResult bundles the token material returned after a successful login.
type LoginResult struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expires_at"`
}

// Login verifies a username and password and issues an access token. Failures
// are reported uniformly so callers cannot probe which usernames exist.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, s.invalidCredentials(username, nil)
	}

	dbUser, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return LoginResult{}, s.invalidCredentials(username, err)
	}
	if !dbUser.Active {
		return LoginResult{}, s.invalidCredentials(username, nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, dbUser.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, s.invalidCredentials(username, err)
	}

	token, expiry, err := s.signAccessToken(db.UUIDString(dbUser.ID), dbUser.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	if obs.LoginAttemptsTotal != nil {
		obs.LoginAttemptsTotal.WithLabelValues("success").Inc()
	}
	s.logger.Info().Str("username", username).Msg("login succeeded")
	return LoginResult{
		User: User{
			ID:       db.UUIDString(dbUser.ID),
			Username: dbUser.Username,
			FullName: dbUser.FullName,
			Role:     dbUser.Role,
		},
		AccessToken:  token,
		AccessExpiry: expiry,
	}, nil
}

func (s *Service) invalidCredentials(username string, err error) error {
	if obs.LoginAttemptsTotal != nil {
		obs.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	}
	s.logger.Warn().Str("username", username).Msg("login failed")
	return common.NewAppError("INVALID_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, err)
}

// ParseAccessToken validates an access token and returns the subject and role.
func (s *Service) ParseAccessToken(token string) (string, string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != s.signer {
		return "", "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed,
		jwt.WithKey(algorithm, s.secret),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return "", "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	role := ""
	if raw, ok := parsed.Get(roleClaim); ok {
		if str, ok := raw.(string); ok {
			role = str
		}
	}
	return parsed.Subject(), role, nil
}

// Tokens signed with alg "none" or a different algorithm than ours must be
// rejected before parsing, so the header is inspected first.
func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(userID, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(roleClaim, role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
