package tags

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/db"
)

// PgStore is the PostgreSQL Store. The tags.name column is CITEXT UNIQUE, which makes the
// database the authority on case-insensitive uniqueness.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore over a pool or an open transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// GetOrCreate inserts name unless it exists and returns the stored row either way.
// A concurrent writer winning the insert is not an error: the row is simply re-read.
func (s *PgStore) GetOrCreate(ctx context.Context, name string) (*Tag, error) {
	if name == "" || name != Canonical(name) {
		return nil, apperror.NewValidationError(fmt.Sprintf("tag name %q is not canonical", name), nil)
	}

	var t Tag
	err := s.db.QueryRow(ctx,
		`INSERT INTO tags (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, name`, name).Scan(&t.ID, &t.Name)
	switch {
	case err == nil:
		return &t, nil
	case errors.Is(err, pgx.ErrNoRows), db.IsUniqueViolation(err):
		return s.FindByName(ctx, name)
	default:
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to upsert tag %q", name), err)
	}
}

// FindByName looks a tag up case-insensitively.
func (s *PgStore) FindByName(ctx context.Context, name string) (*Tag, error) {
	var t Tag
	err := s.db.QueryRow(ctx, `SELECT id, name FROM tags WHERE name = $1`, Canonical(name)).Scan(&t.ID, &t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("tag %q not found", name), nil)
		}
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to load tag %q", name), err)
	}
	return &t, nil
}

// ListAll returns every tag in alphabetical order.
func (s *PgStore) ListAll(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list tags", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tag, error) {
		var t Tag
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to scan tags", err)
	}
	return out, nil
}

var _ Store = (*PgStore)(nil)
