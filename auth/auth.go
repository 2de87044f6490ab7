// Package auth, as part of the authentication module.
// This file, `auth.go`, holds the persistence side of users: the UserStore contract the
// service depends on and its PostgreSQL implementation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/db"
)

// UserStore persists users. Lookups return an apperror NotFound when nothing matches;
// Create returns an apperror Conflict when the e-mail is taken.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
}

// PgUserStore is the PostgreSQL-backed UserStore.
type PgUserStore struct {
	db db.DBTX
}

// NewPgUserStore creates a PgUserStore over a pool or transaction.
func NewPgUserStore(conn db.DBTX) *PgUserStore {
	return &PgUserStore{db: conn}
}

// CreateUser inserts u and fills in its ID and CreatedAt.
func (s *PgUserStore) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (name, email, password, image)
              VALUES ($1, $2, $3, $4)
              RETURNING id, created_at`
	err := s.db.QueryRow(ctx, query, u.Name, u.Email, u.HashedPassword, u.Image).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperror.NewConflictError("email already exists", err)
		}
		return apperror.NewDatabaseError("failed to create user", err)
	}
	return nil
}

// UserByEmail looks a user up by e-mail, case-insensitively.
func (s *PgUserStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, name, email, image, password, created_at FROM users WHERE email = $1`
	return s.scanOne(ctx, query, fmt.Sprintf("user with email '%s' not found", email), strings.ToLower(email))
}

// UserByID looks a user up by id.
func (s *PgUserStore) UserByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT id, name, email, image, password, created_at FROM users WHERE id = $1`
	return s.scanOne(ctx, query, fmt.Sprintf("user %d not found", id), id)
}

func (s *PgUserStore) scanOne(ctx context.Context, query, notFound string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(notFound, nil)
		}
		return nil, apperror.NewDatabaseError("failed to load user", err)
	}
	return &u, nil
}

var _ UserStore = (*PgUserStore)(nil)
