package posts

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/events"
	"github.com/user/blog-go/tags"
)

var validate = validator.New()

// Manager owns the post lifecycle. Ownership is checked here, not in the handlers, so
// every entry point gets the same rules.
type Manager struct {
	store      Store
	reconciler *Reconciler
	publisher  events.Publisher
	now        func() time.Time
	maxAge     time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPublisher sends lifecycle events to p.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMaxAge sets the lifetime used to compute expiry instants.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) { m.maxAge = d }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		reconciler: NewReconciler(store),
		publisher:  events.Nop{},
		now:        time.Now,
		maxAge:     DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Reconciler exposes the tag reconciler bound to the manager's store.
func (m *Manager) Reconciler() *Reconciler {
	return m.reconciler
}

// Create stores a new post by authorID with createdAt = now and links its tags.
// The tags must normalize to at least one name.
func (m *Manager) Create(ctx context.Context, authorID int64, req CreatePostRequest) (*Details, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperror.FromValidation(err)
	}
	title, body := strings.TrimSpace(req.Title), strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return nil, apperror.NewValidationError("title and body must not be blank", nil)
	}
	if len(tags.Normalize(req.Tags)) == 0 {
		return nil, apperror.NewValidationError("at least one non-blank tag is required", nil)
	}

	var details *Details
	err := m.store.InTx(ctx, func(tx Store) error {
		p := &Post{Title: title, Body: body, AuthorID: authorID, CreatedAt: m.now().UTC()}
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		if _, err := m.reconciler.apply(ctx, tx, p.ID, req.Tags); err != nil {
			return err
		}
		var err error
		details, err = m.assemble(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, events.PostCreated, details)
	return details, nil
}

// Get returns the post with its author, tags and comment count. A post whose author
// row is missing is reported as not found.
func (m *Manager) Get(ctx context.Context, id int64) (*Details, error) {
	p, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.assemble(ctx, m.store, p)
}

// Update applies the supplied fields of req to post id on behalf of actorID.
// Only the author may update a post.
func (m *Manager) Update(ctx context.Context, actorID, id int64, req UpdatePostRequest) (*Details, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperror.FromValidation(err)
	}

	var details *Details
	err := m.store.InTx(ctx, func(tx Store) error {
		if err := tx.LockForUpdate(ctx, id); err != nil {
			return err
		}
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.AuthorID != actorID {
			return apperror.NewUnauthorizedError("only the author can modify this post", nil)
		}

		changed := false
		if v, ok := present(req.Title); ok && v != p.Title {
			p.Title = v
			changed = true
		}
		if v, ok := present(req.Body); ok && v != p.Body {
			p.Body = v
			changed = true
		}
		if changed {
			if err := tx.Update(ctx, p); err != nil {
				return err
			}
		}

		if req.Tags != nil {
			if _, err := m.reconciler.apply(ctx, tx, id, *req.Tags); err != nil {
				return err
			}
		}

		details, err = m.assemble(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, events.PostUpdated, details)
	return details, nil
}

// present reports the trimmed value of an optional text field and whether it counts as
// supplied. Nil and blank both mean "leave unchanged".
func present(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

// Delete removes post id with its comments and tag links. It reports false when the post
// did not exist. No ownership check is made; the sweeper calls this directly.
func (m *Manager) Delete(ctx context.Context, id int64) (bool, error) {
	return m.store.Delete(ctx, id)
}

// DeleteOwned is Delete gated on actorID being the post's author.
func (m *Manager) DeleteOwned(ctx context.Context, actorID, id int64) (bool, error) {
	var (
		deleted bool
		post    *Post
	)
	err := m.store.InTx(ctx, func(tx Store) error {
		if err := tx.LockForUpdate(ctx, id); err != nil {
			return err
		}
		p, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if p.AuthorID != actorID {
			return apperror.NewUnauthorizedError("only the author can delete this post", nil)
		}
		post = p
		deleted, err = tx.Delete(ctx, id)
		return err
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if deleted {
		ev := events.New(events.PostDeleted, post.ID, post.AuthorID, m.now())
		if err := m.publisher.Publish(ctx, ev); err != nil {
			log.Printf("Failed to publish %s for post %d: %v", ev.Type, post.ID, err)
		}
	}
	return deleted, nil
}

// ListOlderThan returns posts created strictly before now - age.
func (m *Manager) ListOlderThan(ctx context.Context, age time.Duration) ([]Post, error) {
	cutoff := m.now().Add(-age)
	return m.store.List(ctx, ListFilter{CreatedBefore: cutoff})
}

// ListAll returns every post, newest first.
func (m *Manager) ListAll(ctx context.Context) ([]Details, error) {
	return m.list(ctx, ListFilter{})
}

// ListByAuthor returns the posts of authorID, newest first. Ids below 1 belong to nobody.
func (m *Manager) ListByAuthor(ctx context.Context, authorID int64) ([]Details, error) {
	if authorID <= 0 {
		return []Details{}, nil
	}
	return m.list(ctx, ListFilter{AuthorID: authorID})
}

// ListByTag returns the posts linked to the tag called name. An unknown tag yields an
// empty list.
func (m *Manager) ListByTag(ctx context.Context, name string) ([]Details, error) {
	canonical := tags.Canonical(name)
	if canonical == "" {
		return []Details{}, nil
	}
	t, err := m.store.Tags().FindByName(ctx, canonical)
	if err != nil {
		if apperror.IsNotFound(err) {
			return []Details{}, nil
		}
		return nil, err
	}
	return m.list(ctx, ListFilter{TagID: t.ID})
}

// TagsOf returns the tag names of post id.
func (m *Manager) TagsOf(ctx context.Context, id int64) ([]string, error) {
	if _, err := m.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.store.TagNames(ctx, id)
}

func (m *Manager) list(ctx context.Context, f ListFilter) ([]Details, error) {
	found, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Details, 0, len(found))
	for i := range found {
		d, err := m.assemble(ctx, m.store, &found[i])
		if err != nil {
			if apperror.IsNotFound(err) {
				// Author or post vanished between the list and the lookup.
				continue
			}
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *Manager) assemble(ctx context.Context, s Store, p *Post) (*Details, error) {
	author, err := s.Author(ctx, p.AuthorID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("post %d not found", p.ID), err)
		}
		return nil, err
	}
	names, err := s.TagNames(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.CommentCount(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Details{
		Post:         *p,
		Author:       *author,
		Tags:         names,
		CommentCount: count,
		ExpiresAt:    p.ExpiresAt(m.maxAge),
	}, nil
}

// publish never fails the caller: the mutation has already committed.
func (m *Manager) publish(ctx context.Context, t events.Type, d *Details) {
	ev := events.New(t, d.ID, d.AuthorID, m.now())
	ev.Tags = d.Tags
	if err := m.publisher.Publish(ctx, ev); err != nil {
		log.Printf("Failed to publish %s for post %d: %v", t, d.ID, err)
	}
}
