package tags

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/auth"
)

// Handlers exposes the tag vocabulary over HTTP.
type Handlers struct {
	store Store
}

// NewHandlers creates tag handlers backed by store.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes mounts the public tag routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList())
}

// HandleList godoc
// @Summary List tags
// @Description Returns every known tag in alphabetical order, including tags no post uses any more.
// @Tags Tags
// @Produce json
// @Success 200 {object} apperror.SuccessResponse{data=[]tags.Tag}
// @Failure 500 {object} apperror.ErrorResponse
// @Router /api/v1/tags [get]
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := h.store.ListAll(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}
		if all == nil {
			all = []Tag{}
		}
		auth.WriteData(w, http.StatusOK, all)
	}
}
