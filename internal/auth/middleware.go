package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				respondUnauthorized(w, "authentication required")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				respondUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// UserID returns the authenticated user's id, or zero when the request did
// not pass through Middleware.
func UserID(ctx context.Context) int64 {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return 0
	}
	return claims.UserID
}

// Email returns the authenticated user's email when the token carried one.
func Email(ctx context.Context) string {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return ""
	}
	return claims.Email
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
