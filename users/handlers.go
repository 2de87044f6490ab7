package users

import (
	"net/http"

	"github.com/user/blog-go/auth"
)

// UserHandlers exposes UserService over HTTP.
type UserHandlers struct {
	service *UserService
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(service *UserService) *UserHandlers {
	return &UserHandlers{service: service}
}

// HandleGetUserProfile godoc
// @Summary Current user
// @Description Returns the profile of the authenticated user.
// @Tags Users
// @Produce json
// @Success 200 {object} apperror.SuccessResponse{data=auth.Profile}
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Failure 404 {object} apperror.ErrorResponse "User no longer exists"
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandlers) HandleGetUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.RequireUser(r.Context())
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		profile, err := h.service.GetUserProfile(r.Context(), userID)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		auth.WriteData(w, http.StatusOK, profile)
	}
}
