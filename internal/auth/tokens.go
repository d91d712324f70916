// Package auth issues and verifies the JWTs used by the HTTP adapter, and
// checks configured users at login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carries the authenticated user through a request.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenGenerator signs and verifies HS256 access tokens.
type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenGenerator builds a generator with the signing secret and token
// lifetime.
func NewTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenGenerator{secret: []byte(secret), ttl: ttl}
}

// Generate signs a token for the user.
func (tg *TokenGenerator) Generate(username, role, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "fleetwatch",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tg.secret)
}

// Verify parses and validates a token, returning its claims.
func (tg *TokenGenerator) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tg.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
