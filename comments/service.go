package comments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/user/blog-go/apperror"
)

var validate = validator.New()

// Store persists comments.
type Store interface {
	PostExists(ctx context.Context, postID int64) (bool, error)
	Insert(ctx context.Context, c *Comment) error
	// Get returns an apperror NotFound for a missing comment.
	Get(ctx context.Context, id int64) (*Comment, error)
	// ListByPost returns the thread newest first, ties broken by id descending.
	ListByPost(ctx context.Context, postID int64) ([]WithAuthor, error)
	UpdateBody(ctx context.Context, id int64, body string) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// CommentService defines the operations on comments. Mutations take the acting user's id
// and are refused with an authorization error unless that user wrote the comment.
type CommentService interface {
	Create(ctx context.Context, authorID, postID int64, body string) (*Comment, error)
	ListByPost(ctx context.Context, postID int64) ([]WithAuthor, error)
	Get(ctx context.Context, id int64) (*Comment, error)
	Update(ctx context.Context, actorID, id int64, body string) (*Comment, error)
	Delete(ctx context.Context, actorID, id int64) (bool, error)
}

// Manager is the CommentService implementation.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a Manager. now may be nil, meaning time.Now.
func NewManager(store Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now}
}

func checkBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if err := validate.Var(trimmed, "required,max=5000"); err != nil {
		return "", apperror.NewValidationError("comment body must be between 1 and 5000 characters", err)
	}
	return trimmed, nil
}

func (m *Manager) requirePost(ctx context.Context, postID int64) error {
	ok, err := m.store.PostExists(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFoundError(fmt.Sprintf("post %d not found", postID), nil)
	}
	return nil
}

// Create adds a comment by authorID to postID. The post must exist.
func (m *Manager) Create(ctx context.Context, authorID, postID int64, body string) (*Comment, error) {
	text, err := checkBody(body)
	if err != nil {
		return nil, err
	}
	if err := m.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	c := &Comment{Body: text, AuthorID: authorID, PostID: postID, CreatedAt: m.now().UTC()}
	if err := m.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListByPost returns the post's comments, newest first.
func (m *Manager) ListByPost(ctx context.Context, postID int64) ([]WithAuthor, error) {
	if err := m.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	list, err := m.store.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []WithAuthor{}
	}
	return list, nil
}

// Get returns one comment.
func (m *Manager) Get(ctx context.Context, id int64) (*Comment, error) {
	return m.store.Get(ctx, id)
}

// Update replaces the body of comment id. Blank bodies are rejected.
func (m *Manager) Update(ctx context.Context, actorID, id int64, body string) (*Comment, error) {
	text, err := checkBody(body)
	if err != nil {
		return nil, err
	}
	c, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actorID {
		return nil, apperror.NewUnauthorizedError("only the author can modify this comment", nil)
	}
	if err := m.store.UpdateBody(ctx, id, text); err != nil {
		return nil, err
	}
	c.Body = text
	return c, nil
}

// Delete removes comment id. It reports false when there was no such comment.
func (m *Manager) Delete(ctx context.Context, actorID, id int64) (bool, error) {
	c, err := m.store.Get(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if c.AuthorID != actorID {
		return false, apperror.NewUnauthorizedError("only the author can delete this comment", nil)
	}
	return m.store.Delete(ctx, id)
}

var _ CommentService = (*Manager)(nil)
