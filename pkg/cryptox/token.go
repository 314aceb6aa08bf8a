package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenSize128 is 128 bits of entropy, 22 chars after encoding. It is the
// size used for invitation tokens.
const TokenSize128 = 16

// GenerateToken creates a cryptographically secure random token of the
// given byte length, base64url-encoded without padding. The plaintext is
// shown to the invitee exactly once; only its fingerprint is persisted.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the deterministic SHA-256 fingerprint of a token
// as a 43-char base64url string. Lookups match on the fingerprint, so a
// leaked invitations table holds nothing redeemable.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
