package models

import (
	"time"
)

type AccountType string

const (
	AccountTypeBusiness AccountType = "BUSINESS"
	AccountTypeCreator  AccountType = "CREATOR"
)

type ConnectedAccount struct {
	ID             int64       `db:"id" json:"id"`
	UserID         int64       `db:"user_id" json:"user_id"`
	OrganizationID *int64      `db:"organization_id" json:"organization_id,omitempty"`
	IGUserID       string      `db:"ig_user_id" json:"ig_user_id"`
	PageID         string      `db:"page_id" json:"page_id"`
	Username       string      `db:"username" json:"username"`
	ProfilePicture string      `db:"profile_picture_url" json:"profile_picture"`
	FollowersCount int64       `db:"followers_count" json:"followers_count"`
	AccountType    AccountType `db:"account_type" json:"account_type"`
	AccessToken    string      `db:"access_token" json:"-"`
	TokenExpiresAt time.Time   `db:"token_expires_at" json:"token_expires_at"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	ConnectedAt    time.Time   `db:"connected_at" json:"connected_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

func (a *ConnectedAccount) IsTokenExpired(now time.Time) bool {
	return !now.Before(a.TokenExpiresAt)
}

func (a *ConnectedAccount) IsTokenExpiringSoon(now time.Time, thresholdDays int) bool {
	return a.TokenExpiresAt.Before(now.Add(time.Duration(thresholdDays) * 24 * time.Hour))
}

func (a *ConnectedAccount) CanPublish(now time.Time) bool {
	return a.IsActive && !a.IsTokenExpired(now)
}

func (a *ConnectedAccount) UpdateToken(ciphertext string, expiresAt time.Time) {
	a.AccessToken = ciphertext
	a.TokenExpiresAt = expiresAt
	a.UpdatedAt = time.Now()
}

func (a *ConnectedAccount) UpdateProfile(username, profilePicture string, followers int64, accountType AccountType) {
	a.Username = username
	a.ProfilePicture = profilePicture
	a.FollowersCount = followers
	a.AccountType = accountType
	a.UpdatedAt = time.Now()
}

func (a *ConnectedAccount) Activate() {
	a.IsActive = true
	a.UpdatedAt = time.Now()
}

func (a *ConnectedAccount) Deactivate() {
	a.IsActive = false
	a.UpdatedAt = time.Now()
}
