// Package posts implements the post lifecycle: creation with tags, partial updates gated
// on authorship, cascading deletes, age-based listing for expiry, and reconciliation of a
// post's tag links against a desired set.
package posts

import (
	"context"

	"github.com/user/blog-go/tags"
)

// Store persists posts and their tag links. Every lookup of a missing post returns an
// apperror NotFound; storage failures are apperror DatabaseError.
type Store interface {
	// InTx runs fn against a Store bound to a single transaction. fn's error rolls it back.
	InTx(ctx context.Context, fn func(tx Store) error) error
	// Tags returns a tag store sharing this store's transaction, if any.
	Tags() tags.Store

	Insert(ctx context.Context, p *Post) error
	Get(ctx context.Context, id int64) (*Post, error)
	// LockForUpdate blocks concurrent writers of the post until the transaction ends.
	LockForUpdate(ctx context.Context, id int64) error
	Update(ctx context.Context, p *Post) error
	// Delete removes the post's comments, its tag links and then the post itself.
	// It reports false when there was no such post.
	Delete(ctx context.Context, id int64) (bool, error)
	// List returns matching posts newest first.
	List(ctx context.Context, f ListFilter) ([]Post, error)

	// TagNames returns the canonical names linked to the post, sorted.
	TagNames(ctx context.Context, postID int64) ([]string, error)
	// LinkTag is idempotent: linking an already linked tag is a no-op.
	LinkTag(ctx context.Context, postID, tagID int64) error
	UnlinkTag(ctx context.Context, postID, tagID int64) error

	CommentCount(ctx context.Context, postID int64) (int, error)
	// Author returns NotFound when the user row is gone.
	Author(ctx context.Context, userID int64) (*Author, error)
}
