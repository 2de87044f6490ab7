package comments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
)

// CommentHandler handles HTTP requests for comments.
type CommentHandler struct {
	service CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// RegisterPostRoutes mounts the thread routes of one post. It is meant for a router
// mounted at /api/v1/posts/{id}/comments.
func (h *CommentHandler) RegisterPostRoutes(router chi.Router, protect ...func(http.Handler) http.Handler) {
	router.Get("/", h.listComments)
	router.With(protect...).Post("/", h.addComment)
}

// RegisterRoutes mounts the routes addressing a single comment, under /api/v1/comments.
func (h *CommentHandler) RegisterRoutes(router chi.Router, protect ...func(http.Handler) http.Handler) {
	router.Get("/{commentID}", h.getComment)
	router.Group(func(r chi.Router) {
		r.Use(protect...)
		r.Put("/{commentID}", h.updateComment)
		r.Delete("/{commentID}", h.deleteComment)
	})
}

// listComments godoc
// @Summary List comments of a post
// @Description Newest first.
// @Tags Comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} apperror.SuccessResponse{data=[]comments.WithAuthor}
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /api/v1/posts/{id}/comments [get]
func (h *CommentHandler) listComments(w http.ResponseWriter, r *http.Request) {
	postID, err := auth.URLParamID(r, "id")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	list, err := h.service.ListByPost(r.Context(), postID)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteData(w, http.StatusOK, list)
}

// addComment godoc
// @Summary Comment on a post
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param comment body comments.NewCommentRequest true "Comment"
// @Success 201 {object} apperror.SuccessResponse{data=comments.Comment}
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Failure 422 {object} apperror.ErrorResponse "Empty body"
// @Security BearerAuth
// @Router /api/v1/posts/{id}/comments [post]
func (h *CommentHandler) addComment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r.Context())
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	postID, err := auth.URLParamID(r, "id")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	var req NewCommentRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, r, err)
		return
	}
	c, err := h.service.Create(r.Context(), userID, postID, req.Body)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteData(w, http.StatusCreated, c)
}

// getComment godoc
// @Summary Get a comment
// @Tags Comments
// @Produce json
// @Param commentID path int true "Comment ID"
// @Success 200 {object} apperror.SuccessResponse{data=comments.Comment}
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/v1/comments/{commentID} [get]
func (h *CommentHandler) getComment(w http.ResponseWriter, r *http.Request) {
	id, err := auth.URLParamID(r, "commentID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteData(w, http.StatusOK, c)
}

// updateComment godoc
// @Summary Edit a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Param commentID path int true "Comment ID"
// @Param comment body comments.UpdateCommentRequest true "New body"
// @Success 200 {object} apperror.SuccessResponse{data=comments.Comment}
// @Failure 403 {object} apperror.ErrorResponse "Not the author"
// @Failure 404 {object} apperror.ErrorResponse
// @Failure 422 {object} apperror.ErrorResponse "Empty body"
// @Security BearerAuth
// @Router /api/v1/comments/{commentID} [put]
func (h *CommentHandler) updateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r.Context())
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	id, err := auth.URLParamID(r, "commentID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	var req UpdateCommentRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, r, err)
		return
	}
	c, err := h.service.Update(r.Context(), userID, id, req.Body)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	auth.WriteData(w, http.StatusOK, c)
}

// deleteComment godoc
// @Summary Delete a comment
// @Tags Comments
// @Produce json
// @Param commentID path int true "Comment ID"
// @Success 200 {object} apperror.SuccessResponse
// @Failure 403 {object} apperror.ErrorResponse "Not the author"
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/comments/{commentID} [delete]
func (h *CommentHandler) deleteComment(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUser(r.Context())
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	id, err := auth.URLParamID(r, "commentID")
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	deleted, err := h.service.Delete(r.Context(), userID, id)
	if err != nil {
		auth.WriteError(w, r, err)
		return
	}
	if !deleted {
		auth.WriteError(w, r, apperror.NewNotFoundError("comment not found", nil))
		return
	}
	auth.WriteData(w, http.StatusOK, map[string]int64{"id": id})
}
