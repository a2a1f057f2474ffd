// Package jwt inspects bearer credentials issued by the external auth
// provider. The provider holds the signing key, so tokens are decoded
// without signature verification here; only structural validity and
// expiry are checked before deciding whether to connect on startup.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the subset of claims the relay cares about.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Inspect decodes tokenString without verifying its signature and
// returns its claims, or an error when the token is malformed or
// already expired.
func Inspect(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

// Usable reports whether tokenString looks like a live credential.
func Usable(tokenString string) bool {
	if tokenString == "" {
		return false
	}
	_, err := Inspect(tokenString)
	return err == nil
}
