// Package auth issues and hashes the opaque session tokens handed to the
// admin UI. The token itself is random; everything about the session lives
// server-side keyed by the token's hash, so a leaked storage dump never
// exposes a usable credential.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// NewSessionToken returns a fresh random bearer token.
func NewSessionToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken derives the storage key for a token. Session state is always
// looked up by hash, never by the raw token.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
