package models

import "time"

// RefreshToken is a ledger row. Only the sha256 hash of the secret is kept;
// the secret itself is handed to the client once and never stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is unusable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
