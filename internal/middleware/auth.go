package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fleetwatch/fleetwatch/internal/auth"
	"github.com/fleetwatch/fleetwatch/internal/httputil"
)

const claimsKey = contextKey("auth-claims")

// Authenticate verifies the Bearer token and stores its claims in the
// request context. Requests without a valid token are rejected.
func Authenticate(tokens *auth.TokenGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				httputil.WriteError(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "Invalid token.")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a handler behind a minimum role. Must run after
// Authenticate.
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil || !auth.RoleAtLeast(claims.Role, required) {
				httputil.WriteError(w, http.StatusForbidden, "Access denied. Insufficient role.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims extracts the authenticated claims from the context, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
