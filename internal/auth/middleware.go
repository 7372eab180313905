package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/httputil"
	"bigbag/internal/models"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID primitive.ObjectID
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the caller attached by the middleware, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

type Middleware struct {
	tokens *Tokens
}

func NewMiddleware(tokens *Tokens) *Middleware {
	return &Middleware{tokens: tokens}
}

func bearerToken(r *http.Request) (string, *apperr.Error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", apperr.Unauthorized("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", apperr.Unauthorized("invalid Authorization header format")
	}
	return parts[1], nil
}

// ValidateToken rejects requests without a valid bearer token.
func (m *Middleware) ValidateToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, aerr := bearerToken(r)
		if aerr != nil {
			httputil.WriteError(w, r, aerr)
			return
		}

		p, err := m.tokens.Parse(tokenString)
		if err != nil {
			slog.Warn("Invalid token attempt", "error", err)
			httputil.WriteError(w, r, apperr.Unauthorized("invalid or expired token"))
			return
		}

		next(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

// Optional attaches the caller when a valid token is present and otherwise
// lets the request through anonymously.
func (m *Middleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenString, aerr := bearerToken(r); aerr == nil {
			if p, err := m.tokens.Parse(tokenString); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
		}
		next(w, r)
	}
}

// RequireRole validates the token and then the caller's role. Admins pass
// every role check.
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.ValidateToken(func(w http.ResponseWriter, r *http.Request) {
		p, _ := FromContext(r.Context())
		if p.Role != role && !p.IsAdmin() {
			httputil.WriteError(w, r, apperr.Forbidden("this action requires the "+role+" role"))
			return
		}
		next(w, r)
	})
}
