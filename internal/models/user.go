package models

import "time"

// User represents a registered account.
type User struct {
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // bcrypt hash, never serialized
}

// RefreshToken is a server-stored refresh token for a user session.
// Only the SHA256 hash of the token value is persisted.
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	TokenHash string    `json:"token_hash"`
	UserID    string    `json:"user_id"`
}
