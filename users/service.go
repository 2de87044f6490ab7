// Package users provides the read side of user profiles for authenticated callers.
// Registration and credentials live in package auth; this package only exposes who the
// current principal is.
package users

import (
	"context"

	"github.com/user/blog-go/auth"
)

// UserService resolves user profiles through the auth user store.
type UserService struct {
	users auth.UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users auth.UserStore) *UserService {
	return &UserService{users: users}
}

// GetUserProfile returns the public profile of userID, or NotFound.
func (s *UserService) GetUserProfile(ctx context.Context, userID int64) (*auth.Profile, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}
