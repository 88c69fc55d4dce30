package models

import "time"

// OAuthState is a single-use nonce binding an authorization request to the
// user who started it. Consumed exactly once by the callback.
type OAuthState struct {
	State          string    `db:"state"`
	UserID         int64     `db:"user_id"`
	OrganizationID *int64    `db:"organization_id"`
	RedirectURL    string    `db:"redirect_url"`
	ExpiresAt      time.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
}

func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
