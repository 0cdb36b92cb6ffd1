package auth

import "time"

// Account represents a registered user account. The password digest is an
// opaque salt:hash string, never the plaintext password.
type Account struct {
	ID             int64
	Email          string
	PasswordDigest string
	CreatedAt      time.Time
}

// Session binds an opaque token to an account with an absolute expiry. A
// session is valid iff it exists and its expiry is in the future; expiry is
// pushed forward on every authenticated request (sliding window).
type Session struct {
	Token     string
	AccountID int64
	ExpiresAt time.Time
	CreatedAt time.Time
}
