package domain

import (
	"strings"
	"time"
)

type User struct {
	ID        string
	Name      string
	Email     string // normalized: trimmed, lowercased
	Role      Role
	HasAccess bool
	Company   string // optional
	Phone     string // optional
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail canonicalizes an email for storage and comparison.
// All email matching in the system is done on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after the last '@', lowercased, or "" when the
// address has no domain part.
func EmailDomain(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
