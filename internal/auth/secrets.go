// ABOUTME: Secret generation for sign-in tokens and database passphrases
// ABOUTME: Uses crypto/rand with URL-safe base64 encoding

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Byte lengths differ so tokens and passphrases live in disjoint value spaces.
const (
	tokenBytes      = 18
	passphraseBytes = 24
)

// NewToken generates a URL-safe, single-use sign-in token.
func NewToken() (string, error) {
	return randomString(tokenBytes)
}

// NewPassphrase generates a long-lived database passphrase.
func NewPassphrase() (string, error) {
	return randomString(passphraseBytes)
}

// randomString generates a URL-safe base64 string from n random bytes
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
