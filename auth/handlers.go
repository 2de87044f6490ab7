// Package auth, as part of the authentication module.
// This file, `handlers.go`, is responsible for handling HTTP requests related to authentication.
// It acts as the "Controller" layer, analogous to an `AuthController` in Nest.js.
// It also hosts the response helpers every other feature package writes through, so the
// `{status, data|error}` envelope is produced in exactly one place.
package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/user/blog-go/apperror"
)

var validate = validator.New()

// Handlers wraps the AuthService to provide HTTP handlers.
type Handlers struct {
	service *AuthService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{service: service}
}

// The `godoc` comments (like `@Summary`, `@Tags`, etc.) are annotations used by `swaggo/swag`
// to generate OpenAPI documentation, similar to `@nestjs/swagger` decorators.

// HandleRegister godoc
// @Summary User Registration
// @Description Registers a new user. E-mail addresses are unique case-insensitively.
// @Tags Auth
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 201 {object} apperror.SuccessResponse{data=auth.Profile} "User created successfully"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Malformed JSON"
// @Failure 409 {object} apperror.ErrorResponse "Conflict - E-mail already registered"
// @Failure 422 {object} apperror.ErrorResponse "Unprocessable Entity - Invalid fields"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			WriteError(w, r, apperror.FromValidation(err))
			return
		}

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteData(w, http.StatusCreated, user.Profile())
	}
}

// HandleLogin godoc
// @Summary User Login
// @Description Logs in an existing user and returns access and refresh tokens.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "User login credentials"
// @Success 200 {object} apperror.SuccessResponse{data=auth.TokenResponse} "Login successful, tokens provided"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Malformed JSON"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid credentials"
// @Failure 422 {object} apperror.ErrorResponse "Unprocessable Entity - Invalid fields"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			WriteError(w, r, apperror.FromValidation(err))
			return
		}

		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteData(w, http.StatusOK, resp)
	}
}

// HandleRefreshToken godoc
// @Summary Refresh Access Token
// @Description Provides a new access token using a valid refresh token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param refreshBody body auth.RefreshTokenRequest true "Refresh token details"
// @Success 200 {object} apperror.SuccessResponse{data=auth.TokenResponse} "Tokens refreshed successfully"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Malformed JSON"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or expired refresh token"
// @Failure 422 {object} apperror.ErrorResponse "Unprocessable Entity - Missing refresh token"
// @Router /auth/refresh [post]
func (h *Handlers) HandleRefreshToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefreshTokenRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			WriteError(w, r, apperror.FromValidation(err))
			return
		}

		resp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteData(w, http.StatusOK, resp)
	}
}

// Helper functions for writing responses.

// DecodeJSON decodes the request body into dst. An empty or malformed body is a BadRequest.
func DecodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.NewBadRequestError("request body is empty", nil)
		}
		return apperror.NewBadRequestError("invalid request body: "+err.Error(), err)
	}
	return nil
}

// URLParamID parses the positive integer URL parameter called name.
func URLParamID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequestError("invalid id: "+raw, nil)
	}
	return id, nil
}

// WriteJSON serializes `data` to JSON and writes it with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; all that is left is to record it.
		log.Printf("Error encoding response: %v", err)
	}
}

// WriteData writes the success envelope around data.
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, apperror.SuccessResponse{Status: apperror.StatusSuccess, Data: data})
}

// WriteError converts any error into the error envelope with its mapped status code.
// Errors that are not *apperror.AppError are reported as a generic 500 and logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}

	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Printf("Error processing request %s %s: %v", r.Method, r.URL.Path, appErr)
	}

	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
