package transfer

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the payload of the session token issued by the external
// identity provider.
type IdentityClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// OAuthCallbackResult reports what a successful provider callback produced.
type OAuthCallbackResult struct {
	ConnectedCount int
	RedirectURL    string
}
