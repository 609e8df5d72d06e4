// Package auth issues and validates the access tokens used by the API
// routes. The app is single-profile: a token names the profile owner, not
// a row in a user table.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// AccessTokenDuration is how long an issued token stays valid.
	AccessTokenDuration = 7 * 24 * time.Hour

	issuer = "chatpet"
)

// ClaimsMessage is the payload carried by an access token.
type ClaimsMessage struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a token for username with the instance secret.
func GenerateAccessToken(username, secret string) (string, error) {
	now := time.Now()
	claims := &ClaimsMessage{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}
	return signed, nil
}

// Authenticate parses and validates tokenStr, returning its claims.
func Authenticate(tokenStr, secret string) (*ClaimsMessage, error) {
	claims := &ClaimsMessage{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}
	return claims, nil
}
