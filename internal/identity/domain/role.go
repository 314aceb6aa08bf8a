package domain

import (
	"errors"
	"strings"
)

// Role is the coarse access level a user holds on the platform.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RolePilot  Role = "pilot"
)

// legacyRoleUser predates the client/pilot split. It no longer exists as an
// assignable role; records carrying it are read as client.
const legacyRoleUser = "user"

var ErrUnknownRole = errors.New("domain: unknown role")

// ParseRole normalizes a role string, migrating the legacy "user" role to
// client. Unknown values are rejected rather than defaulted.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleClient), legacyRoleUser:
		return RoleClient, nil
	case string(RolePilot):
		return RolePilot, nil
	default:
		return "", ErrUnknownRole
	}
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient || r == RolePilot
}
