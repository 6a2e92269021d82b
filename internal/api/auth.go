package api

import (
	"net/http"
	"strings"

	"github.com/snapquest/api/internal/auth"
	"github.com/snapquest/api/internal/middleware"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests without a valid access token and stores the
// authenticated user ID and role in the request context.
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, validator)
			if !ok {
				return
			}

			ctx := middleware.SetUserID(r.Context(), claims.Subject)
			ctx = middleware.SetUserRole(ctx, claims.Role)
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is RequireAuth plus an admin role check. Refresh tokens never
// pass even when issued to an admin.
func RequireAdmin(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, validator)
			if !ok {
				return
			}
			if !claims.IsAdmin() {
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
				WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Admin role required")
				return
			}

			ctx := middleware.SetUserID(r.Context(), claims.Subject)
			ctx = middleware.SetUserRole(ctx, claims.Role)
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, validator TokenValidator) (*auth.Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Missing bearer token")
		return nil, false
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired token")
		return nil, false
	}
	if claims.Type != auth.TokenTypeAccess {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Access token required")
		return nil, false
	}
	return claims, true
}
