// Package auth, as part of the authentication module.
// This file, `context.go`, deals with carrying the authenticated principal in the request
// `context.Context`, the standard Go way to pass request-scoped values across API boundaries.
package auth

import (
	"context"

	"github.com/user/blog-go/apperror"
)

// `contextKey` is a custom type for context keys. Using a custom type prevents collisions
// with context keys defined in other packages.
type contextKey string

const userIDContextKey contextKey = "auth_user_id"

// WithUserID returns a child context carrying the authenticated user's id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// CurrentUser returns the id stored by JWTMiddleware, if any.
func CurrentUser(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok && userID > 0
}

// RequireUser is CurrentUser for handlers behind JWTMiddleware: a missing principal is an
// authentication error rather than a zero id.
func RequireUser(ctx context.Context) (int64, error) {
	userID, ok := CurrentUser(ctx)
	if !ok {
		return 0, apperror.NewAuthError("authentication required", nil)
	}
	return userID, nil
}
