package reward

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerTokenTTL = time.Minute

// bearerToken mints the HS256 token presented when the WebSocket is opened.
// Gateways check the signature and a recent iat.
func bearerToken(secret []byte, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("reward: empty bearer secret")
	}
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(bearerTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
