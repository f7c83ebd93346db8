package models

import "time"

// User is an account that can hold at most one family membership
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	OAuthProvider string    `json:"oauth_provider,omitempty"`
	OAuthSubject  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasPassword reports whether the account can log in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
