package utils

import (
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/socialflowhq/socialflow/internal/transfer"
)

// ValidateToken verifies a session token minted by the identity provider and
// returns its claims. Only HMAC signatures are accepted.
func ValidateToken(secretKey, tokenString string) (*transfer.IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &transfer.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if claims, ok := token.Claims.(*transfer.IdentityClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
