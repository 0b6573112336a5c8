// ABOUTME: Bearer credential verification for relay connections
// ABOUTME: Validates JWTs at upgrade time and extracts the user identity
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Error types
var (
	ErrMissingCredential = errors.New("missing bearer credential")
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

// Verifier checks a bearer credential and resolves it to a user ID
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// JWTVerifier validates HMAC-signed JWTs against a shared secret
type JWTVerifier struct {
	secret []byte
}

// NewJWT creates a verifier for the given signing secret
func NewJWT(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning its subject claim
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingCredential
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidCredential)
	}

	return subject, nil
}

// FromRequest extracts the bearer credential from an upgrade request.
// Browsers cannot set headers on WebSocket upgrades, so a token query
// parameter is accepted as a fallback.
func FromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
	}
	return r.URL.Query().Get("token")
}
