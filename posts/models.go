package posts

import "time"

// DefaultMaxAge is how long a post lives before the sweeper removes it.
const DefaultMaxAge = 24 * time.Hour

// Post is the stored row. A post is either active or gone; there are no other states.
type Post struct {
	ID        int64     `json:"id" example:"12"`
	Title     string    `json:"title" example:"Hello"`
	Body      string    `json:"body" example:"First post"`
	AuthorID  int64     `json:"author_id" example:"1"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt is the instant after which the post is eligible for deletion.
func (p Post) ExpiresAt(maxAge time.Duration) time.Time {
	return p.CreatedAt.Add(maxAge)
}

// Author is the public summary of a post's author.
type Author struct {
	ID   int64  `json:"id" example:"1"`
	Name string `json:"name" example:"Ada Lovelace"`
}

// Details is a post as shown to clients.
type Details struct {
	Post
	Author       Author    `json:"author"`
	Tags         []string  `json:"tags" example:"api,test"`
	CommentCount int       `json:"comment_count" example:"2"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ListFilter narrows Store.List. Zero values mean "any", so callers must not pass a
// zero AuthorID or TagID to mean "nobody".
type ListFilter struct {
	AuthorID      int64
	TagID         int64
	CreatedBefore time.Time // strict: created_at < CreatedBefore
}

// CreatePostRequest is the input of Manager.Create.
type CreatePostRequest struct {
	Title string   `json:"title" validate:"required,max=200" example:"Hello"`
	Body  string   `json:"body" validate:"required,max=20000" example:"First post"`
	Tags  []string `json:"tags" validate:"required,min=1,max=20,dive,max=50" example:"API,api,Test"`
}

// UpdatePostRequest is the input of Manager.Update. A nil field was not supplied and
// leaves the stored value as it is. Title and Body supplied as blank strings are treated
// the same way: a post can never be saved with an empty title or body.
type UpdatePostRequest struct {
	Title *string   `json:"title,omitempty" validate:"omitempty,max=200" example:"Hello again"`
	Body  *string   `json:"body,omitempty" validate:"omitempty,max=20000"`
	Tags  *[]string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50" example:"test,new"`
}

// ReconcileResult reports the resulting tag set of a post and the delta that produced it.
type ReconcileResult struct {
	Tags    []string `json:"tags"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Changed reports whether any link was added or removed.
func (r ReconcileResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// TagList is the body of GET /api/v1/posts/{id}/tags.
type TagList struct {
	PostID int64    `json:"post_id"`
	Tags   []string `json:"tags"`
}
