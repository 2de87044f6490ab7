// Package events carries post lifecycle notifications out of the core: to browsers over
// Server-Sent Events, and optionally to other services over NATS.
// Publishing is fire-and-forget from the caller's point of view: a failed notification
// never fails the mutation that produced it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Type names a lifecycle transition.
type Type string

const (
	PostCreated Type = "post.created"
	PostUpdated Type = "post.updated"
	PostDeleted Type = "post.deleted"
	// PostExpired is emitted by the sweeper instead of PostDeleted.
	PostExpired Type = "post.expired"
)

// Event is one lifecycle notification.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	PostID   int64     `json:"post_id"`
	AuthorID int64     `json:"author_id,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	At       time.Time `json:"at"`
}

// New stamps an event with a fresh id.
func New(t Type, postID, authorID int64, at time.Time) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     t,
		PostID:   postID,
		AuthorID: authorID,
		At:       at.UTC(),
	}
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher, attempting all of them even if some fail.
type Multi []Publisher

// Publish implements Publisher. The returned error aggregates every failure.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var result *multierror.Error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
