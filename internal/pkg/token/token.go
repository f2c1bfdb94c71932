package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// New generates a cryptographically random opaque secret of n bytes,
// base64url-encoded without padding. Single-use tokens and WebAuthn
// challenges both use 32 bytes.
func New(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
