// Package comments is responsible for comments on posts: creating them, listing a post's
// thread newest first, and author-only edits and deletes. Comments disappear with their
// post; the post store removes them as part of its delete.
package comments

import "time"

// Comment is the stored row.
type Comment struct {
	ID        int64     `json:"id" example:"5"`
	Body      string    `json:"body" example:"Nice post"`
	AuthorID  int64     `json:"author_id" example:"2"`
	PostID    int64     `json:"post_id" example:"12"`
	CreatedAt time.Time `json:"created_at"`
}

// Author is the public summary of a comment's author.
type Author struct {
	ID   int64  `json:"id" example:"2"`
	Name string `json:"name" example:"Grace Hopper"`
}

// WithAuthor is a comment as shown in a post's thread.
type WithAuthor struct {
	Comment
	Author Author `json:"author"`
}

// NewCommentRequest is the body of POST /api/v1/posts/{id}/comments.
type NewCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000" example:"Nice post"`
}

// UpdateCommentRequest is the body of PUT /api/v1/comments/{id}. Unlike posts, an empty
// body is rejected rather than ignored.
type UpdateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000" example:"Nice post, edited"`
}
