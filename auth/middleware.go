// Package auth, as part of the authentication module.
// This file, `middleware.go`, defines HTTP middleware related to authentication.
// Middleware are functions that process HTTP requests before they reach the main handler.
// In Nest.js, guards (`CanActivate`) serve a similar purpose.
package auth

import (
	"net/http"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/config"
)

// JWTMiddleware creates a new JWT authentication middleware.
// It verifies the access token from the Authorization header and adds the user id to the context.
// The returned middleware conforms to the standard Go `func(next http.Handler) http.Handler` pattern.
func JWTMiddleware(cfg *config.AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(w, r, apperror.NewAuthError("Authorization header is missing", nil))
				return
			}

			// The Authorization header should be in the format "Bearer {token}".
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				WriteError(w, r, apperror.NewAuthError("Authorization header format must be Bearer {token}", nil))
				return
			}

			claims, err := parseToken(cfg.JWTSecret, parts[1], tokenTypeAccess)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError("Invalid token", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}
