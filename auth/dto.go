// Package auth: DTOs (Data Transfer Objects) for the authentication endpoints.
// The `validate` tags are consumed by go-playground/validator, much like class-validator
// decorators on a Nest.js DTO class.
package auth

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=100" example:"Ada Lovelace"`
	Email    string  `json:"email" validate:"required,email,max=254" example:"ada@example.com"`
	Password string  `json:"password" validate:"required,min=8,max=72" example:"strongpassword123"`
	Image    *string `json:"image,omitempty" validate:"omitempty,url" example:"https://example.com/ada.png"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required" example:"strongpassword123"`
}

// TokenResponse carries the issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType    string `json:"token_type" example:"Bearer"`
	ExpiresIn    int64  `json:"expires_in" example:"1718000000"` // Unix time the access token expires at
}

// RefreshTokenRequest is the body of POST /auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
