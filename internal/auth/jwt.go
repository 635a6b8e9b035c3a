// ABOUTME: JWT credential verification for the jwt auth service kind
// ABOUTME: Uses HS256 signing with a per-service configurable secret

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// JWTService verifies HS256-signed JWTs for one named auth service.
type JWTService struct {
	name   string
	secret []byte
}

// NewJWTService creates a jwt auth service with the given signing secret.
func NewJWTService(name string, secret []byte) *JWTService {
	return &JWTService{name: name, secret: secret}
}

// Name returns the configured auth service name.
func (s *JWTService) Name() string { return s.name }

// Verify validates the token and extracts the subject from the "sub" claim.
func (s *JWTService) Verify(credential string) (subject string, err error) {
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC family methods are acceptable for a shared secret.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Generate creates a new JWT for the given subject with an expiration.
func (s *JWTService) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
