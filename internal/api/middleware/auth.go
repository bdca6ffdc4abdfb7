package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/pricelist/internal/api/problem"
	"github.com/example/pricelist/internal/auth"
	"github.com/example/pricelist/internal/engine"
)

// AccessTokenCookie holds the admin session for browser clients.
const AccessTokenCookie = "access_token"

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware validates JWT tokens and adds admin claims to context
func AuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				problem.Write(w, http.StatusUnauthorized, "Unauthorized", "admin session required")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				problem.Write(w, http.StatusUnauthorized, "Unauthorized", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware adds claims to context if a valid token is present, but doesn't require it
func OptionalAuthMiddleware(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				if claims, err := jwtService.ValidateToken(tokenString); err == nil {
					ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests whose claims do not carry the catalog edit
// capability.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok {
			problem.Write(w, http.StatusUnauthorized, "Unauthorized", "admin session required")
			return
		}
		if !claims.IsAdmin() {
			problem.Write(w, http.StatusForbidden, "Forbidden", "catalog edit capability required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaimsFromContext retrieves session claims from the request context
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// Capability converts the session in ctx into the engine capability. An
// anonymous request gets the zero capability.
func Capability(ctx context.Context) engine.Capability {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return engine.Capability{}
	}
	return engine.Capability{CanEditCatalog: claims.IsAdmin()}
}
