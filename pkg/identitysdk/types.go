package identitysdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the standard error envelope returned by every endpoint.
type ErrorResponse struct {
	// Error is a stable machine-readable code (e.g. "invalid_request",
	// "status_conflict", "merge_conflict")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ValidationErrorResponse is returned when request body validation fails.
type ValidationErrorResponse struct {
	// Code is always "validation_error"
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains field-specific validation errors (field name: error message)
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Invitation Types
// ============================================================================

// IssueInvitationRequest creates an invitation for a prospective user.
type IssueInvitationRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
	HasAccess bool   `json:"has_access"`

	// TTLSeconds overrides the default invitation lifetime when positive.
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// InvitationInfo is the API view of a stored invitation. The raw token is
// never part of it; tokens only appear in IssueInvitationResponse at
// creation or resend time.
type InvitationInfo struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Company    string     `json:"company,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Status     string     `json:"status"`
	InvitedBy  string     `json:"invited_by"`
	InvitedAt  time.Time  `json:"invited_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// IssueInvitationResponse is returned from issue and resend.
type IssueInvitationResponse struct {
	Invitation InvitationInfo `json:"invitation"`

	// InviteToken is the one-time secret for the invited user. It is not
	// stored anywhere and cannot be retrieved again.
	InviteToken string `json:"invite_token"`

	// DeliveryFailed is true when the invitation was stored but the
	// notification could not be sent. The caller should resend later.
	DeliveryFailed bool `json:"delivery_failed,omitempty"`
}

// ListInvitationsResponse wraps the invitation listing.
type ListInvitationsResponse struct {
	Invitations []InvitationInfo `json:"invitations"`
}

// RedeemInvitationRequest consumes an invitation token. The caller's email
// comes from their bearer token, not the body.
type RedeemInvitationRequest struct {
	InviteToken string `json:"invite_token"`
}

// ============================================================================
// User Types
// ============================================================================

// UserInfo is the API view of a user account.
type UserInfo struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	HasAccess bool      `json:"has_access"`
	Company   string    `json:"company,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListUsersResponse wraps the user listing.
type ListUsersResponse struct {
	Users []UserInfo `json:"users"`
}

// SetRoleRequest changes a user's role.
type SetRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason,omitempty"`
}

// SetAccessRequest flips a user's access flag.
type SetAccessRequest struct {
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason,omitempty"`
}

// RoleEventInfo is one entry of a user's role audit trail.
type RoleEventInfo struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason,omitempty"`
}

// RoleHistoryResponse wraps a user's role audit trail, oldest first.
type RoleHistoryResponse struct {
	UserID string          `json:"user_id"`
	Events []RoleEventInfo `json:"events"`
}

// ============================================================================
// Maintenance Types
// ============================================================================

// ResolveDuplicatesRequest asks the service to collapse duplicate accounts
// sharing one email into a single survivor.
type ResolveDuplicatesRequest struct {
	Email string `json:"email"`
}

// ResolveDuplicatesResponse reports the merge outcome.
type ResolveDuplicatesResponse struct {
	User UserInfo `json:"user"`

	// Strategy names the tie-break rule that selected the survivor
	// ("invitation-role" or "most-recent").
	Strategy string `json:"strategy"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthChecks reports the status of critical dependencies.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
}

// HealthResponse is returned from the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
