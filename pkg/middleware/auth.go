package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/moroccoguide/platform/pkg/errors"
	"github.com/moroccoguide/platform/pkg/httputil"
	"github.com/moroccoguide/platform/pkg/logger"
)

type contextKeyType string

const (
	userIDKey contextKeyType = "user_id"
	claimsKey contextKeyType = "claims"
)

// Claims is the identity extracted from a bearer token.
type Claims struct {
	UserID  string
	Name    string
	Avatar  string
	Country string
}

// TokenValidator validates a raw bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth rejects requests without a valid bearer token with 401 and stores the
// caller's claims in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, r, "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				writeAuthError(w, r, "invalid authorization header format")
				return
			}

			claims, err := validate(strings.TrimSpace(token))
			if err != nil || claims == nil || claims.UserID == "" {
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims stores claims in ctx. Handlers tests use it to skip token parsing.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, userIDKey, claims.UserID)
}

// ClaimsFromContext returns the authenticated caller, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// UserIDFromContext returns the authenticated user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	httputil.WriteErrorCode(w, r, http.StatusUnauthorized, apperrors.CodeUnauthorized, message)
}
