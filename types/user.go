package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Email is the user's unique login address.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsVerified reports whether the account may receive role assignments.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// RefreshToken is the single currently valid refresh token, or nil when
	// the user is logged out. Issuing a new token overwrites it.
	RefreshToken *string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PublicUser is the subset of a user returned by token verification.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public strips credential material from u.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
