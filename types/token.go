package types

import "time"

// TokenPair is the result of a login or a refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AccessClaims is the identity carried by a verified access token.
type AccessClaims struct {
	UserID    int64     `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"-"`
}
