// Package tokentest mints signed access tokens shaped like the backend's, for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const secret = "tokentest-secret"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type Option func(claims jwt.MapClaims)

// WithRole sets role_name and role_id
func WithRole(name string, id any) Option {
	return func(claims jwt.MapClaims) {
		claims["role_name"] = name
		claims["role_id"] = id
	}
}

// WithExpiry sets exp to the given time
func WithExpiry(exp time.Time) Option {
	return func(claims jwt.MapClaims) {
		claims["exp"] = exp.Unix()
	}
}

// WithoutExpiry drops the exp claim
func WithoutExpiry() Option {
	return func(claims jwt.MapClaims) {
		delete(claims, "exp")
	}
}

func WithClaim(key string, value any) Option {
	return func(claims jwt.MapClaims) {
		claims[key] = value
	}
}

// Mint signs an HS256 access token for subject. By default it expires in
// fifteen minutes and carries no role.
func Mint(t testing.TB, subject string, options ...Option) string {
	t.Helper()

	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(),
		"jti": uuid.New().String(), // distinct tokens even within the same second
	}
	for _, opt := range options {
		opt(claims)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("tokentest.Mint: %v", err)
	}
	return signed
}
