// Package service contains the business logic layer.
//
// This file implements operator sign-in. The backend owns accounts; this
// service only forwards credentials and reads what the returned token says.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DukeRupert/taqa/internal/api"
	"github.com/DukeRupert/taqa/internal/domain"
)

const (
	// DefaultSessionDuration is used when the token carries no expiry.
	DefaultSessionDuration = 24 * time.Hour

	// MaxPasswordLength caps what is forwarded to the backend.
	MaxPasswordLength = 256

	MsgInvalidCredentials = "Invalid email or password"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AuthService defines the interface for session operations.
type AuthService interface {
	// Login forwards credentials to the backend.
	// Returns a ValidationError for malformed input and domain.EUNAUTHORIZED
	// when the backend refuses them.
	Login(ctx context.Context, params domain.LoginParams) (*domain.User, error)

	// Session rebuilds the operator from a stored token.
	// Returns domain.EUNAUTHORIZED for a malformed, forged or expired token.
	Session(ctx context.Context, token string) (*domain.User, error)

	// CookieMaxAge returns how long the session cookie for user should live.
	CookieMaxAge(user *domain.User) time.Duration
}

// AuthServiceConfig holds configuration for the auth service.
type AuthServiceConfig struct {
	// JWTSecret verifies token signatures when set. Without it claims are
	// read unverified and the backend stays the authority on every call.
	JWTSecret string
}

// =============================================================================
// Implementation
// =============================================================================

type authService struct {
	backend Backend
	secret  []byte
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(backend Backend, cfg AuthServiceConfig, logger *slog.Logger) AuthService {
	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}
	return &authService{
		backend: backend,
		secret:  secret,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *authService) Login(ctx context.Context, params domain.LoginParams) (*domain.User, error) {
	const op = "auth.login"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))

	fields := domain.FieldErrors{}
	if params.Email == "" {
		fields.Add("email", "Email is required")
	} else if !domain.IsValidEmail(params.Email) {
		fields.Add("email", "Please enter a valid email address")
	}
	if params.Password == "" {
		fields.Add("password", "Password is required")
	} else if len(params.Password) > MaxPasswordLength {
		fields.Add("password", "Password is too long")
	}
	if err := fields.Err(op); err != nil {
		return nil, err
	}

	user, err := s.backend.Login(ctx, params)
	if err != nil {
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED || domain.ErrorCode(err) == domain.EINVALID {
			s.logger.Info("login refused", "email", params.Email)
			return nil, domain.Unauthorized(op, MsgInvalidCredentials)
		}
		return nil, err
	}

	// Claims fill in anything the login body left out, mostly expiry.
	if claims, err := s.parse(user.Token); err == nil {
		mergeClaims(user, claims)
	}

	s.logger.Info("operator signed in", "user_id", user.ID, "tenant_id", user.TenantID)
	return user, nil
}

func (s *authService) Session(ctx context.Context, token string) (*domain.User, error) {
	const op = "auth.session"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.Unauthorized(op, "no session")
	}

	claims, err := s.parse(token)
	if err != nil {
		return nil, domain.Wrap(err, domain.EUNAUTHORIZED, op, "invalid session token")
	}

	user := &domain.User{Token: token}
	mergeClaims(user, claims)

	if user.IsExpired(s.now()) {
		return nil, domain.Unauthorized(op, "session expired")
	}
	return user, nil
}

func (s *authService) CookieMaxAge(user *domain.User) time.Duration {
	if user == nil || user.ExpiresAt.IsZero() {
		return DefaultSessionDuration
	}
	if d := user.ExpiresAt.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// =============================================================================
// Token Claims
// =============================================================================

// sessionClaims are the claims the backend puts in its access tokens.
// Field names vary between backend releases, so several spellings are read.
type sessionClaims struct {
	UserID    api.ID `json:"userId,omitempty"`
	PlainID   api.ID `json:"id,omitempty"`
	TenantID  api.ID `json:"tenantId,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (s *authService) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}

	if s.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", err)
		}
		return nil, err
	}
	return claims, nil
}

// mergeClaims copies claims into user without overwriting known values.
func mergeClaims(user *domain.User, c *sessionClaims) {
	setIfEmpty(&user.ID, firstNonEmpty(string(c.UserID), string(c.PlainID), c.Subject))
	setIfEmpty(&user.TenantID, string(c.TenantID))
	setIfEmpty(&user.Email, c.Email)

	if user.FirstName == "" && user.LastName == "" {
		if c.FirstName != "" || c.LastName != "" {
			user.FirstName, user.LastName = c.FirstName, c.LastName
		} else if c.Name != "" {
			first, last, _ := strings.Cut(strings.TrimSpace(c.Name), " ")
			user.FirstName, user.LastName = first, strings.TrimSpace(last)
		}
	}

	if user.ExpiresAt.IsZero() && c.ExpiresAt != nil {
		user.ExpiresAt = c.ExpiresAt.Time
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
