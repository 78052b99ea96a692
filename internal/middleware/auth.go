package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"mytune-auth/internal/model"
	"mytune-auth/internal/token"
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string, expected token.Type) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth admits requests carrying a live access token. A session store
// outage is reported as 503, never as an unauthenticated pass.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		claims, err := m.validator.ValidateToken(r.Context(), strings.TrimSpace(header[7:]), token.TypeAccess)
		if errors.Is(err, model.ErrSessionStoreUnavailable) {
			w.Header().Set("Retry-After", "5")
			writeJSONError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "authentication is temporarily unavailable")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}

// WithClaims attaches validated claims to ctx. RequireAuth uses it; handler
// tests use it to skip token validation.
func WithClaims(ctx context.Context, claims *model.AuthClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}
