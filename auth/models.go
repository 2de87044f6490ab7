// Package auth, as previously noted, handles authentication.
// This file, `models.go`, defines the data structures (models) used within the auth package.
package auth

import "time"

// User represents a registered user. E-mail is stored lower-cased and is unique
// case-insensitively; the password is only ever held as a bcrypt hash.
type User struct {
	ID             int64     `json:"id" example:"1"`
	Name           string    `json:"name" example:"Ada Lovelace"`
	Email          string    `json:"email" example:"ada@example.com"`
	Image          *string   `json:"image,omitempty" example:"https://example.com/ada.png"`
	HashedPassword string    `json:"-"` // never serialized
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the public view of a user, safe to embed in other responses.
type Profile struct {
	ID    int64   `json:"id" example:"1"`
	Name  string  `json:"name" example:"Ada Lovelace"`
	Email string  `json:"email" example:"ada@example.com"`
	Image *string `json:"image,omitempty"`
}

// Profile strips credentials and timestamps from u.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}
