package posts

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
)

// Handlers exposes the Manager over HTTP.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates post handlers.
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// RegisterRoutes mounts the post routes on r. Reads are public; writes run behind protect
// (JWT authentication, rate limiting).
func (h *Handlers) RegisterRoutes(r chi.Router, protect ...func(http.Handler) http.Handler) {
	r.Get("/", h.HandleList())
	r.Get("/{id}", h.HandleGet())
	r.Get("/{id}/tags", h.HandleTags())

	r.Group(func(r chi.Router) {
		r.Use(protect...)
		r.Post("/", h.HandleCreate())
		r.Put("/{id}", h.HandleUpdate())
		r.Delete("/{id}", h.HandleDelete())
	})
}

// HandleList godoc
// @Summary List posts
// @Description Lists posts newest first, optionally filtered by tag or author.
// @Tags Posts
// @Produce json
// @Param tag query string false "Tag name (case-insensitive)"
// @Param author query int false "Author user id"
// @Success 200 {object} apperror.SuccessResponse{data=[]posts.Details}
// @Failure 400 {object} apperror.ErrorResponse "Bad author id"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /api/v1/posts [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			list []Details
			err  error
		)
		switch {
		case q.Get("tag") != "":
			list, err = h.manager.ListByTag(r.Context(), q.Get("tag"))
		case q.Get("author") != "":
			authorID, perr := strconv.ParseInt(q.Get("author"), 10, 64)
			if perr != nil || authorID <= 0 {
				auth.WriteError(w, r, apperror.NewBadRequestError("invalid author id", perr))
				return
			}
			list, err = h.manager.ListByAuthor(r.Context(), authorID)
		default:
			list, err = h.manager.ListAll(r.Context())
		}
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteData(w, http.StatusOK, list)
	}
}

// HandleGet godoc
// @Summary Get a post
// @Tags Posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} apperror.SuccessResponse{data=posts.Details}
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/v1/posts/{id} [get]
func (h *Handlers) HandleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.URLParamID(r, "id")
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		d, err := h.manager.Get(r.Context(), id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteData(w, http.StatusOK, d)
	}
}

// HandleTags godoc
// @Summary Tags of a post
// @Tags Posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} apperror.SuccessResponse{data=posts.TagList}
// @Failure 404 {object} apperror.ErrorResponse
// @Router /api/v1/posts/{id}/tags [get]
func (h *Handlers) HandleTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.URLParamID(r, "id")
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		names, err := h.manager.TagsOf(r.Context(), id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteData(w, http.StatusOK, TagList{PostID: id, Tags: names})
	}
}

// HandleCreate godoc
// @Summary Create a post
// @Description Creates a post owned by the caller. Tags are lower-cased, trimmed and de-duplicated; at least one is required.
// @Tags Posts
// @Accept json
// @Produce json
// @Param post body posts.CreatePostRequest true "New post"
// @Success 201 {object} apperror.SuccessResponse{data=posts.Details}
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 422 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/posts [post]
func (h *Handlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.RequireUser(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req CreatePostRequest
		if err := auth.DecodeJSON(r, &req); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		d, err := h.manager.Create(r.Context(), userID, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteData(w, http.StatusCreated, d)
	}
}

// HandleUpdate godoc
// @Summary Update a post
// @Description Partially updates a post. Omitted or blank title/body are left unchanged; omitted tags are left unchanged; an empty tag list is a no-op.
// @Tags Posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param post body posts.UpdatePostRequest true "Fields to change"
// @Success 200 {object} apperror.SuccessResponse{data=posts.Details}
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse "Not the author"
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/posts/{id} [put]
func (h *Handlers) HandleUpdate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.RequireUser(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := auth.URLParamID(r, "id")
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		var req UpdatePostRequest
		if err := auth.DecodeJSON(r, &req); err != nil {
			auth.WriteError(w, r, err)
			return
		}
		d, err := h.manager.Update(r.Context(), userID, id, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		auth.WriteData(w, http.StatusOK, d)
	}
}

// HandleDelete godoc
// @Summary Delete a post
// @Description Deletes a post together with its comments and tag links.
// @Tags Posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} apperror.SuccessResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Failure 403 {object} apperror.ErrorResponse "Not the author"
// @Failure 404 {object} apperror.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/posts/{id} [delete]
func (h *Handlers) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.RequireUser(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		id, err := auth.URLParamID(r, "id")
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		deleted, err := h.manager.DeleteOwned(r.Context(), userID, id)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		if !deleted {
			auth.WriteError(w, r, apperror.NewNotFoundError("post not found", nil))
			return
		}
		auth.WriteData(w, http.StatusOK, map[string]int64{"id": id})
	}
}
