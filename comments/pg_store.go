package comments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/db"
)

// PgStore is the PostgreSQL Store.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// PostExists reports whether post postID is stored.
func (s *PgStore) PostExists(ctx context.Context, postID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists)
	if err != nil {
		return false, apperror.NewDatabaseError(fmt.Sprintf("failed to check post %d", postID), err)
	}
	return exists, nil
}

// Insert stores c and sets its ID. A vanished post is reported as NotFound.
func (s *PgStore) Insert(ctx context.Context, c *Comment) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO comments (body, author_id, post_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.Body, c.AuthorID, c.PostID, c.CreatedAt).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		// The post was deleted (or expired) after the existence check.
		if db.IsForeignKeyViolation(err) {
			return apperror.NewNotFoundError(fmt.Sprintf("post %d not found", c.PostID), err)
		}
		return apperror.NewDatabaseError("failed to insert comment", err)
	}
	return nil
}

// Get returns comment id, or a NotFound error.
func (s *PgStore) Get(ctx context.Context, id int64) (*Comment, error) {
	var c Comment
	err := s.db.QueryRow(ctx,
		`SELECT id, body, author_id, post_id, created_at FROM comments WHERE id = $1`, id).
		Scan(&c.ID, &c.Body, &c.AuthorID, &c.PostID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("comment %d not found", id), nil)
		}
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to load comment %d", id), err)
	}
	return &c, nil
}

// ListByPost returns the comments of postID with their authors, newest first.
func (s *PgStore) ListByPost(ctx context.Context, postID int64) ([]WithAuthor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.body, c.author_id, c.post_id, c.created_at, u.id, u.name
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at DESC, c.id DESC`, postID)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to list comments of post %d", postID), err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (WithAuthor, error) {
		var c WithAuthor
		err := row.Scan(&c.ID, &c.Body, &c.AuthorID, &c.PostID, &c.CreatedAt, &c.Author.ID, &c.Author.Name)
		return c, err
	})
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to scan comments of post %d", postID), err)
	}
	return out, nil
}

// UpdateBody replaces the body of comment id.
func (s *PgStore) UpdateBody(ctx context.Context, id int64, body string) error {
	tag, err := s.db.Exec(ctx, `UPDATE comments SET body = $1 WHERE id = $2`, body, id)
	if err != nil {
		return apperror.NewDatabaseError(fmt.Sprintf("failed to update comment %d", id), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("comment %d not found", id), nil)
	}
	return nil
}

// Delete removes comment id and reports whether it existed.
func (s *PgStore) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, apperror.NewDatabaseError(fmt.Sprintf("failed to delete comment %d", id), err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ Store = (*PgStore)(nil)
