package models

import (
	"errors"
	"fmt"
)

var (
	ErrOAuthState         = errors.New("oauth state is invalid or expired")
	ErrNoInstagramAccount = errors.New("no eligible instagram business account linked")
	ErrAccountNotFound    = errors.New("connected account not found")
	ErrAccountInactive    = errors.New("connected account is inactive")
	ErrTokenExpired       = errors.New("access token has expired")
	ErrTokenRefresh       = errors.New("unable to refresh access token")
	ErrRateLimited        = errors.New("rate limited by instagram")
	ErrDecryption         = errors.New("unable to decrypt stored credential")
	ErrPostNotFound       = errors.New("scheduled post not found")
)

// ValidationError reports rejected post content or scheduling input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TransitionError reports a state change the post status table does not allow.
type TransitionError struct {
	From PostStatus
	To   PostStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition post from %s to %s", e.From, e.To)
}
