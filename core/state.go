package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generateAuthState produces the anti-CSRF state parameter: 24 random bytes
// (192 bits, above the 128-bit floor) in URL-safe base64.
func generateAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
