package main

import "time"

// User is a login identity. Usernames are stored trimmed and lower-cased;
// PasswordHash is always a canonical bcrypt hash and TOTPSecret a base32 key.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	TOTPSecret   string
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
