package domain

import "time"

// RoleEvent is one entry in a user's append-only role audit trail. Events are
// keyed by user id in their own log, decoupled from the live user projection,
// and are never updated or deleted.
type RoleEvent struct {
	ID        string
	UserID    string
	Role      Role
	ChangedBy string // never empty
	ChangedAt time.Time
	Reason    string
}

// AccessAction labels the direction of an access flag change.
type AccessAction string

const (
	AccessActivated   AccessAction = "activated"
	AccessDeactivated AccessAction = "deactivated"
)

// AccessEvent is the pure data event emitted on every access flag change.
// It is published for the externally-owned audit-history view and is not
// persisted here.
type AccessEvent struct {
	UserID    string       `json:"user_id"`
	Email     string       `json:"email"`
	Action    AccessAction `json:"action"`
	HasAccess bool         `json:"has_access"`
	ChangedBy string       `json:"changed_by"`
	ChangedAt time.Time    `json:"changed_at"`
	Reason    string       `json:"reason,omitempty"`
}
