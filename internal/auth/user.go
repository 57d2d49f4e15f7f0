package auth

import (
	"strings"
	"time"
)

// User is a human account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	ProfilePic   string    `json:"profile_pic,omitempty"`
	GoogleOIDCID string    `json:"-"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	APIKey       string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName is "First Last", falling back to the email address.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// PasswordEnabled reports whether the user can sign in with a password.
func (u *User) PasswordEnabled() bool {
	return u.PasswordHash != ""
}

// ServiceAccount is a non-human integration account.
type ServiceAccount struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
