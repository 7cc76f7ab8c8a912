// Package auth verifies HS256 bearer tokens for the HTTP API.
//
// Tokens carry a subject and a list of scopes: "read" allows the read-only
// methods and the event stream, "control" additionally allows transmitting.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope constants
const (
	ScopeRead    = "read"
	ScopeControl = "control"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the parsed token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Scopes  []string `json:"scopes"`
}

// HasScope reports whether the claims grant scope. Control implies read.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope || (scope == ScopeRead && s == ScopeControl) {
			return true
		}
	}
	return false
}

// tokenClaims is the JWT body
type tokenClaims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("HS256 requires secret key")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyToken verifies a JWT token and returns the claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}

	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing 'sub' claim", ErrInvalidToken)
	}
	if len(tc.Scopes) == 0 {
		return nil, fmt.Errorf("%w: missing 'scopes' claim", ErrInvalidToken)
	}
	for _, s := range tc.Scopes {
		if s != ScopeRead && s != ScopeControl {
			return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidToken, s)
		}
	}

	return &Claims{Subject: tc.Subject, Scopes: tc.Scopes}, nil
}

// IssueToken signs a token for subject with scopes. A zero ttl issues a
// token that never expires.
func IssueToken(secret, subject string, scopes []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("HS256 requires secret key")
	}
	now := time.Now()
	tc := tokenClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		tc.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(secret))
}
