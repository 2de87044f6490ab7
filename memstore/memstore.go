// Package memstore is an in-memory backend for every store interface in the application.
// It backs STORAGE_DRIVER=memory and the package tests. All stores created from one DB
// share a single state guarded by one mutex; identifiers come from per-table sequences
// owned by that state, never from package-level counters.
//
// Transactions are emulated: InTx holds the mutex for the whole callback and restores a
// snapshot of the state if the callback fails.
package memstore

import (
	"strings"
	"sync"
	"time"

	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
)

type linkKey struct {
	postID int64
	tagID  int64
}

type sequences struct {
	user, post, tag, link, comment int64
}

type state struct {
	users    map[int64]auth.User
	posts    map[int64]posts.Post
	tags     map[int64]tags.Tag
	tagNames map[string]int64 // canonical name -> tag id
	links    map[linkKey]int64
	comments map[int64]comments.Comment
	seq      sequences
}

func newState() *state {
	return &state{
		users:    make(map[int64]auth.User),
		posts:    make(map[int64]posts.Post),
		tags:     make(map[int64]tags.Tag),
		tagNames: make(map[string]int64),
		links:    make(map[linkKey]int64),
		comments: make(map[int64]comments.Comment),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:    make(map[int64]auth.User, len(s.users)),
		posts:    make(map[int64]posts.Post, len(s.posts)),
		tags:     make(map[int64]tags.Tag, len(s.tags)),
		tagNames: make(map[string]int64, len(s.tagNames)),
		links:    make(map[linkKey]int64, len(s.links)),
		comments: make(map[int64]comments.Comment, len(s.comments)),
		seq:      s.seq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.tagNames {
		c.tagNames[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	return c
}

func (s *state) userByEmail(email string) (auth.User, bool) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return auth.User{}, false
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// DB is the shared in-memory database.
type DB struct {
	mu sync.Mutex
	st *state
}

// New returns an empty database.
func New() *DB {
	return &DB{st: newState()}
}

// handle is embedded by every store. held is true for stores handed to an InTx callback,
// whose caller already owns the mutex.
type handle struct {
	db   *DB
	held bool
}

func (h handle) do(fn func(st *state) error) error {
	if !h.held {
		h.db.mu.Lock()
		defer h.db.mu.Unlock()
	}
	return fn(h.db.st)
}

// inTx runs fn with the mutex held and rolls the state back if fn fails.
func (h handle) inTx(fn func(held handle) error) error {
	if !h.held {
		h.db.mu.Lock()
		defer h.db.mu.Unlock()
	}
	snapshot := h.db.st.clone()
	if err := fn(handle{db: h.db, held: true}); err != nil {
		h.db.st = snapshot
		return err
	}
	return nil
}

// Users returns the auth.UserStore view.
func (d *DB) Users() *UserStore { return &UserStore{handle{db: d}} }

// Tags returns the tags.Store view.
func (d *DB) Tags() *TagStore { return &TagStore{handle{db: d}} }

// Posts returns the posts.Store view.
func (d *DB) Posts() *PostStore { return &PostStore{handle{db: d}} }

// Comments returns the comments.Store view.
func (d *DB) Comments() *CommentStore { return &CommentStore{handle{db: d}} }

// DeleteUser removes a user row without touching their posts or comments. It exists to
// exercise the missing-author paths.
func (d *DB) DeleteUser(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.st.users, id)
}

// Counts reports row counts per table, for assertions about cascades.
type Counts struct {
	Users, Posts, Tags, PostTags, Comments int
}

// Counts returns the current row counts.
func (d *DB) Counts() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Users:    len(d.st.users),
		Posts:    len(d.st.posts),
		Tags:     len(d.st.tags),
		PostTags: len(d.st.links),
		Comments: len(d.st.comments),
	}
}
