package domain

import "time"

// InvitationStatus tracks the invitation lifecycle.
type InvitationStatus string

const (
	// InvitationStatusPending indicates the invitation has not been redeemed.
	InvitationStatusPending InvitationStatus = "pending"
	// InvitationStatusAccepted indicates the invitation was redeemed.
	InvitationStatusAccepted InvitationStatus = "accepted"
	// InvitationStatusExpired indicates the invitation lapsed unredeemed.
	InvitationStatusExpired InvitationStatus = "expired"
)

// Invitation is a time-boxed, single-use offer to create or bind an account.
// Only a SHA-256 fingerprint of the opaque token is persisted.
type Invitation struct {
	ID         string
	Email      string // normalized
	Name       string
	Company    string // optional
	Phone      string // optional
	Role       Role
	HasAccess  bool
	TokenHash  string
	InvitedBy  string // email of the issuing admin
	InvitedAt  time.Time
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	Status     InvitationStatus
	UpdatedAt  time.Time
}

// IsExpired reports whether the invitation has lapsed at the given instant.
// A pending row past its expiry is treated as expired everywhere, whether or
// not the housekeeping sweep has flipped its status yet.
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsRedeemable reports whether the invitation can still be redeemed.
func (i *Invitation) IsRedeemable(now time.Time) bool {
	return i.Status == InvitationStatusPending && !i.IsExpired(now)
}
