// Package auth verifies bearer identity tokens and guards routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pocketbase/pocketbase/core"
)

const (
	// keys used with RequestEvent.Set/Get
	ContextEmail = "auth.email"
	ContextRole  = "auth.role"
)

type (
	// Verifier resolves a bearer token to the caller's verified email.
	Verifier interface {
		Verify(ctx context.Context, token string) (string, error)
	}

	// RoleLookup resolves the role stored for an email.
	RoleLookup interface {
		RoleOf(ctx context.Context, email string) (models.Role, error)
	}
)

// ---------------------------------------------------------------------------

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type emailClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens that carry an "email" claim.
type JWTVerifier struct {
	key    []byte
	parser *jwt.Parser
}

var _ Verifier = (*JWTVerifier)(nil)

func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTVerifier{
		key:    []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	claims := &emailClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrUnauthorized, err)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: token has no email claim", status.ErrUnauthorized)
	}
	return strings.ToLower(claims.Email), nil
}

// ---------------------------------------------------------------------------

// PocketBaseVerifier accepts auth tokens issued by PocketBase itself.
type PocketBaseVerifier struct {
	app core.App
}

var _ Verifier = (*PocketBaseVerifier)(nil)

func NewPocketBaseVerifier(app core.App) *PocketBaseVerifier {
	return &PocketBaseVerifier{app: app}
}

func (v *PocketBaseVerifier) Verify(_ context.Context, token string) (string, error) {
	record, err := v.app.FindAuthRecordByToken(token, core.TokenTypeAuth)
	if err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrUnauthorized, err)
	}
	if record.Email() == "" {
		return "", fmt.Errorf("%w: auth record has no email", status.ErrUnauthorized)
	}
	return strings.ToLower(record.Email()), nil
}

// ---------------------------------------------------------------------------

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (string, error) {
	errs := make([]error, 0, len(c))
	for _, v := range c {
		email, err := v.Verify(ctx, token)
		if err == nil {
			return email, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no verifier configured", status.ErrUnauthorized)
	}
	return "", errors.Join(errs...)
}

// ---------------------------------------------------------------------------

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		token, _ = strings.CutPrefix(header, "bearer ")
	}
	return strings.TrimSpace(token)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified email on the event under ContextEmail.
func RequireAuth(v Verifier) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		token := bearerToken(e.Request)
		if token == "" {
			return e.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized access"})
		}

		email, err := v.Verify(e.Request.Context(), token)
		if err != nil {
			slog.Debug("token rejected", "remote", e.Request.RemoteAddr, "error", err)
			return e.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized access"})
		}

		e.Set(ContextEmail, email)
		return e.Next()
	}
}

// RequireRole allows the request through when the caller holds one of
// roles. It must run after RequireAuth.
func RequireRole(lookup RoleLookup, roles ...models.Role) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		email := CallerEmail(e)
		if email == "" {
			return e.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized access"})
		}

		role, err := lookup.RoleOf(e.Request.Context(), email)
		if err != nil && !errors.Is(err, status.ErrNotFound) {
			return err
		}
		if !slices.Contains(roles, role) {
			return e.JSON(http.StatusForbidden, map[string]string{"message": "forbidden access"})
		}

		e.Set(ContextRole, role)
		return e.Next()
	}
}

// CallerEmail returns the email stored by RequireAuth, or "".
func CallerEmail(e *core.RequestEvent) string {
	email, _ := e.Get(ContextEmail).(string)
	return email
}
