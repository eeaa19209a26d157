// Package auth derives a verified principal from a request's bearer
// credential. Verification itself is delegated to the identity provider's
// token contract: session tokens are RS256 JWTs signed by the provider, and
// this service only needs the provider's public key to check them.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer credential is supplied.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken is returned when the credential fails verification or
	// carries no subject.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenVerifier produces a verified subject identifier from a bearer
// credential. Implementations must be safe for concurrent use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// JWTVerifier validates RS256 session tokens against the identity provider's
// public key and extracts the subject claim.
type JWTVerifier struct {
	key *rsa.PublicKey
}

// NewJWTVerifier parses a PEM-encoded RSA public key.
func NewJWTVerifier(pemKey string) (*JWTVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{key: key}, nil
}

// Verify checks the token's signature and standard time claims, and returns
// the subject. Tokens signed with any non-RSA method are rejected.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.key, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// TokenFromHeader extracts the credential from an Authorization header of the
// form "Bearer <token>" (scheme case-insensitive).
func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return parts[1], nil
}
