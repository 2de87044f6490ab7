package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
)

// UserStore implements auth.UserStore.
type UserStore struct{ handle }

func (s *UserStore) CreateUser(_ context.Context, u *auth.User) error {
	return s.do(func(st *state) error {
		if _, taken := st.userByEmail(u.Email); taken {
			return apperror.NewConflictError("email already exists", nil)
		}
		st.seq.user++
		u.ID = st.seq.user
		if u.CreatedAt.IsZero() {
			u.CreatedAt = nowUTC()
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (s *UserStore) UserByEmail(_ context.Context, email string) (*auth.User, error) {
	var out *auth.User
	err := s.do(func(st *state) error {
		u, ok := st.userByEmail(email)
		if !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("user with email '%s' not found", email), nil)
		}
		out = &u
		return nil
	})
	return out, err
}

func (s *UserStore) UserByID(_ context.Context, id int64) (*auth.User, error) {
	var out *auth.User
	err := s.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("user %d not found", id), nil)
		}
		out = &u
		return nil
	})
	return out, err
}

// TagStore implements tags.Store.
type TagStore struct{ handle }

func (s *TagStore) GetOrCreate(_ context.Context, name string) (*tags.Tag, error) {
	if name == "" || name != tags.Canonical(name) {
		return nil, apperror.NewValidationError(fmt.Sprintf("tag name %q is not canonical", name), nil)
	}
	var out tags.Tag
	err := s.do(func(st *state) error {
		if id, ok := st.tagNames[name]; ok {
			out = st.tags[id]
			return nil
		}
		st.seq.tag++
		out = tags.Tag{ID: st.seq.tag, Name: name}
		st.tags[out.ID] = out
		st.tagNames[name] = out.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TagStore) FindByName(_ context.Context, name string) (*tags.Tag, error) {
	var out tags.Tag
	err := s.do(func(st *state) error {
		id, ok := st.tagNames[tags.Canonical(name)]
		if !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("tag %q not found", name), nil)
		}
		out = st.tags[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TagStore) ListAll(_ context.Context) ([]tags.Tag, error) {
	var out []tags.Tag
	_ = s.do(func(st *state) error {
		out = make([]tags.Tag, 0, len(st.tags))
		for _, t := range st.tags {
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PostStore implements posts.Store.
type PostStore struct{ handle }

func postNotFound(id int64) error {
	return apperror.NewNotFoundError(fmt.Sprintf("post %d not found", id), nil)
}

func (s *PostStore) InTx(_ context.Context, fn func(tx posts.Store) error) error {
	return s.inTx(func(h handle) error {
		return fn(&PostStore{h})
	})
}

func (s *PostStore) Tags() tags.Store {
	return &TagStore{s.handle}
}

func (s *PostStore) Insert(_ context.Context, p *posts.Post) error {
	return s.do(func(st *state) error {
		if _, ok := st.users[p.AuthorID]; !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("author %d not found", p.AuthorID), nil)
		}
		st.seq.post++
		p.ID = st.seq.post
		if p.CreatedAt.IsZero() {
			p.CreatedAt = nowUTC()
		}
		st.posts[p.ID] = *p
		return nil
	})
}

func (s *PostStore) Get(_ context.Context, id int64) (*posts.Post, error) {
	var out posts.Post
	err := s.do(func(st *state) error {
		p, ok := st.posts[id]
		if !ok {
			return postNotFound(id)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LockForUpdate only checks existence; the store mutex already serialises writers.
func (s *PostStore) LockForUpdate(_ context.Context, id int64) error {
	return s.do(func(st *state) error {
		if _, ok := st.posts[id]; !ok {
			return postNotFound(id)
		}
		return nil
	})
}

func (s *PostStore) Update(_ context.Context, p *posts.Post) error {
	return s.do(func(st *state) error {
		cur, ok := st.posts[p.ID]
		if !ok {
			return postNotFound(p.ID)
		}
		cur.Title, cur.Body = p.Title, p.Body
		st.posts[p.ID] = cur
		return nil
	})
}

func (s *PostStore) Delete(_ context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.do(func(st *state) error {
		for cid, c := range st.comments {
			if c.PostID == id {
				delete(st.comments, cid)
			}
		}
		for k := range st.links {
			if k.postID == id {
				delete(st.links, k)
			}
		}
		if _, ok := st.posts[id]; ok {
			delete(st.posts, id)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (s *PostStore) List(_ context.Context, f posts.ListFilter) ([]posts.Post, error) {
	var out []posts.Post
	_ = s.do(func(st *state) error {
		out = make([]posts.Post, 0, len(st.posts))
		for _, p := range st.posts {
			if f.AuthorID != 0 && p.AuthorID != f.AuthorID {
				continue
			}
			if f.TagID != 0 {
				if _, ok := st.links[linkKey{postID: p.ID, tagID: f.TagID}]; !ok {
					continue
				}
			}
			if !f.CreatedBefore.IsZero() && !p.CreatedAt.Before(f.CreatedBefore) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *PostStore) TagNames(_ context.Context, postID int64) ([]string, error) {
	names := []string{}
	_ = s.do(func(st *state) error {
		for k := range st.links {
			if k.postID == postID {
				names = append(names, st.tags[k.tagID].Name)
			}
		}
		return nil
	})
	sort.Strings(names)
	return names, nil
}

func (s *PostStore) LinkTag(_ context.Context, postID, tagID int64) error {
	return s.do(func(st *state) error {
		if _, ok := st.posts[postID]; !ok {
			return postNotFound(postID)
		}
		if _, ok := st.tags[tagID]; !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("tag %d not found", tagID), nil)
		}
		key := linkKey{postID: postID, tagID: tagID}
		if _, exists := st.links[key]; exists {
			return nil
		}
		st.seq.link++
		st.links[key] = st.seq.link
		return nil
	})
}

func (s *PostStore) UnlinkTag(_ context.Context, postID, tagID int64) error {
	return s.do(func(st *state) error {
		delete(st.links, linkKey{postID: postID, tagID: tagID})
		return nil
	})
}

func (s *PostStore) CommentCount(_ context.Context, postID int64) (int, error) {
	n := 0
	_ = s.do(func(st *state) error {
		for _, c := range st.comments {
			if c.PostID == postID {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (s *PostStore) Author(_ context.Context, userID int64) (*posts.Author, error) {
	var out *posts.Author
	err := s.do(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("author %d not found", userID), nil)
		}
		out = &posts.Author{ID: u.ID, Name: u.Name}
		return nil
	})
	return out, err
}

// CommentStore implements comments.Store.
type CommentStore struct{ handle }

func commentNotFound(id int64) error {
	return apperror.NewNotFoundError(fmt.Sprintf("comment %d not found", id), nil)
}

func (s *CommentStore) PostExists(_ context.Context, postID int64) (bool, error) {
	var ok bool
	_ = s.do(func(st *state) error {
		_, ok = st.posts[postID]
		return nil
	})
	return ok, nil
}

func (s *CommentStore) Insert(_ context.Context, c *comments.Comment) error {
	return s.do(func(st *state) error {
		if _, ok := st.posts[c.PostID]; !ok {
			return postNotFound(c.PostID)
		}
		if _, ok := st.users[c.AuthorID]; !ok {
			return apperror.NewNotFoundError(fmt.Sprintf("author %d not found", c.AuthorID), nil)
		}
		st.seq.comment++
		c.ID = st.seq.comment
		if c.CreatedAt.IsZero() {
			c.CreatedAt = nowUTC()
		}
		st.comments[c.ID] = *c
		return nil
	})
}

func (s *CommentStore) Get(_ context.Context, id int64) (*comments.Comment, error) {
	var out comments.Comment
	err := s.do(func(st *state) error {
		c, ok := st.comments[id]
		if !ok {
			return commentNotFound(id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *CommentStore) ListByPost(_ context.Context, postID int64) ([]comments.WithAuthor, error) {
	out := []comments.WithAuthor{}
	_ = s.do(func(st *state) error {
		for _, c := range st.comments {
			if c.PostID != postID {
				continue
			}
			u, ok := st.users[c.AuthorID]
			if !ok {
				continue
			}
			out = append(out, comments.WithAuthor{Comment: c, Author: comments.Author{ID: u.ID, Name: u.Name}})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *CommentStore) UpdateBody(_ context.Context, id int64, body string) error {
	return s.do(func(st *state) error {
		c, ok := st.comments[id]
		if !ok {
			return commentNotFound(id)
		}
		c.Body = strings.TrimSpace(body)
		st.comments[id] = c
		return nil
	})
}

func (s *CommentStore) Delete(_ context.Context, id int64) (bool, error) {
	var deleted bool
	_ = s.do(func(st *state) error {
		if _, ok := st.comments[id]; ok {
			delete(st.comments, id)
			deleted = true
		}
		return nil
	})
	return deleted, nil
}

var (
	_ auth.UserStore = (*UserStore)(nil)
	_ tags.Store     = (*TagStore)(nil)
	_ posts.Store    = (*PostStore)(nil)
	_ comments.Store = (*CommentStore)(nil)
)
