package jwtx

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity-provider access-token claims this service cares
// about. The provider owns authentication; we only read the verified email
// and permission scopes out of its tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the authenticated email asserted by the identity provider.
	Email string `json:"email,omitempty"`

	// Scopes as a JSON array ("scopes") or the OAuth2 space-delimited form
	// ("scope"); AllScopes merges both.
	Scopes   []string `json:"scopes,omitempty"`
	ScopeStr string   `json:"scope,omitempty"`
}

// AllScopes returns the union of both scope claim encodings.
func (c *Claims) AllScopes() []string {
	if c.ScopeStr == "" {
		return c.Scopes
	}
	out := make([]string, 0, len(c.Scopes)+4)
	seen := make(map[string]struct{})
	for _, s := range append(append([]string{}, c.Scopes...), strings.Fields(c.ScopeStr)...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
