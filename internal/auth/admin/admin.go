// Package admin validates the bearer token guarding administrative endpoints.
// The configured secret is hashed once with SHA-256; presented tokens are
// hashed and compared in constant time. With no secret configured every
// token is rejected.
package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrDisabled     = errors.New("admin token is not configured")
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type Validator struct {
	hash    [sha256.Size]byte
	enabled bool
}

// NewValidator returns a validator for secret. An empty secret disables
// administrative access entirely.
func NewValidator(secret string) *Validator {
	if secret == "" {
		return &Validator{}
	}
	return &Validator{hash: sha256.Sum256([]byte(secret)), enabled: true}
}

func (v *Validator) Enabled() bool { return v.enabled }

// Validate checks a raw token.
func (v *Validator) Validate(token string) error {
	if !v.enabled {
		return ErrDisabled
	}
	if token == "" {
		return ErrMissingToken
	}
	presented := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(presented[:], v.hash[:]) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// ValidateRequest reads the token from an "Authorization: Bearer <token>"
// header.
func (v *Validator) ValidateRequest(r *http.Request) error {
	return v.Validate(BearerToken(r))
}

func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}
