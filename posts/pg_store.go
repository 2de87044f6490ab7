package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/db"
	"github.com/user/blog-go/tags"
)

// PgStore is the PostgreSQL Store.
type PgStore struct {
	db db.DBTX
}

// NewPgStore creates a PgStore over a pool or an open transaction.
func NewPgStore(conn db.DBTX) *PgStore {
	return &PgStore{db: conn}
}

// InTx runs fn in a transaction. Called on a store already inside a transaction it opens
// a savepoint.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&PgStore{db: tx})
	})
}

// Tags returns a tag store on the same connection or transaction.
func (s *PgStore) Tags() tags.Store {
	return tags.NewPgStore(s.db)
}

func notFound(id int64) error {
	return apperror.NewNotFoundError(fmt.Sprintf("post %d not found", id), nil)
}

// Insert stores p and sets its ID from the posts sequence.
func (s *PgStore) Insert(ctx context.Context, p *Post) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO posts (title, body, author_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Title, p.Body, p.AuthorID, p.CreatedAt).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperror.NewNotFoundError(fmt.Sprintf("author %d not found", p.AuthorID), err)
		}
		return apperror.NewDatabaseError("failed to insert post", err)
	}
	return nil
}

// Get returns post id, or a NotFound error.
func (s *PgStore) Get(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := s.db.QueryRow(ctx,
		`SELECT id, title, body, author_id, created_at FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Body, &p.AuthorID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to load post %d", id), err)
	}
	return &p, nil
}

// LockForUpdate takes a row lock on the post. Outside a transaction the lock is released
// as soon as the statement finishes, so callers use it from InTx.
func (s *PgStore) LockForUpdate(ctx context.Context, id int64) error {
	var locked int64
	err := s.db.QueryRow(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(id)
		}
		return apperror.NewDatabaseError(fmt.Sprintf("failed to lock post %d", id), err)
	}
	return nil
}

// Update writes the title and body of p.
func (s *PgStore) Update(ctx context.Context, p *Post) error {
	tag, err := s.db.Exec(ctx, `UPDATE posts SET title = $1, body = $2 WHERE id = $3`, p.Title, p.Body, p.ID)
	if err != nil {
		return apperror.NewDatabaseError(fmt.Sprintf("failed to update post %d", p.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(p.ID)
	}
	return nil
}

// Delete removes dependents explicitly rather than relying on ON DELETE CASCADE alone,
// so the statement order is visible and identical across stores.
func (s *PgStore) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.InTx(ctx, func(txStore Store) error {
		tx := txStore.(*PgStore)
		if _, err := tx.db.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to delete comments of post %d", id), err)
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, id); err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to delete tag links of post %d", id), err)
		}
		tag, err := tx.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return apperror.NewDatabaseError(fmt.Sprintf("failed to delete post %d", id), err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

// List returns the posts matching f, newest first with id as tiebreak.
func (s *PgStore) List(ctx context.Context, f ListFilter) ([]Post, error) {
	var (
		where []string
		args  []any
	)
	if f.AuthorID != 0 {
		args = append(args, f.AuthorID)
		where = append(where, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if f.TagID != 0 {
		args = append(args, f.TagID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = $%d)", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore)
		where = append(where, fmt.Sprintf("p.created_at < $%d", len(args)))
	}

	query := `SELECT p.id, p.title, p.body, p.author_id, p.created_at FROM posts p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list posts", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Post, error) {
		var p Post
		err := row.Scan(&p.ID, &p.Title, &p.Body, &p.AuthorID, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to scan posts", err)
	}
	return out, nil
}

// TagNames returns the sorted tag names linked to postID.
func (s *PgStore) TagNames(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.name FROM post_tags pt
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE pt.post_id = $1
		 ORDER BY t.name`, postID)
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to load tags of post %d", postID), err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to scan tags of post %d", postID), err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// LinkTag links tagID to postID. An existing link is left as it is.
func (s *PgStore) LinkTag(ctx context.Context, postID, tagID int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (post_id, tag_id) DO NOTHING`, postID, tagID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return notFound(postID)
		}
		return apperror.NewDatabaseError(fmt.Sprintf("failed to link tag %d to post %d", tagID, postID), err)
	}
	return nil
}

// UnlinkTag removes the link between postID and tagID, if any.
func (s *PgStore) UnlinkTag(ctx context.Context, postID, tagID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1 AND tag_id = $2`, postID, tagID)
	if err != nil {
		return apperror.NewDatabaseError(fmt.Sprintf("failed to unlink tag %d from post %d", tagID, postID), err)
	}
	return nil
}

// CommentCount returns the number of comments on postID.
func (s *PgStore) CommentCount(ctx context.Context, postID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM comments WHERE post_id = $1`, postID).Scan(&n); err != nil {
		return 0, apperror.NewDatabaseError(fmt.Sprintf("failed to count comments of post %d", postID), err)
	}
	return n, nil
}

// Author returns the public summary of user userID, or a NotFound error.
func (s *PgStore) Author(ctx context.Context, userID int64) (*Author, error) {
	var a Author
	err := s.db.QueryRow(ctx, `SELECT id, name FROM users WHERE id = $1`, userID).Scan(&a.ID, &a.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("author %d not found", userID), nil)
		}
		return nil, apperror.NewDatabaseError(fmt.Sprintf("failed to load author %d", userID), err)
	}
	return &a, nil
}

var _ Store = (*PgStore)(nil)
