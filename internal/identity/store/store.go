package store

import (
	"context"
	"errors"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Users() Users
	Invitations() Invitations
	RoleEvents() RoleEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step mutations that must be atomic
	// (e.g. redeem, merge).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail returns the most recently created user for a normalized
	// email. Duplicate rows from pre-index history may exist; callers that
	// need all of them use ListUsersByEmail.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// ListUsersByEmail returns every user record for a normalized email,
	// oldest first. Used by the duplicate-identity merge.
	ListUsersByEmail(ctx context.Context, email string) ([]domain.User, error)

	// ListUsers returns all users ordered by creation date (newest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUserProfile overwrites name/company/phone/role/has_access and
	// bumps updated_at. Used when overlaying invitation fields during merge.
	UpdateUserProfile(ctx context.Context, u domain.User) error

	// UpdateUserRole sets the role and bumps updated_at.
	UpdateUserRole(ctx context.Context, userID string, role domain.Role) error

	// UpdateUserAccess sets the has_access flag and bumps updated_at.
	UpdateUserAccess(ctx context.Context, userID string, hasAccess bool) error

	// DeleteUser removes a user record. Role events are intentionally not
	// cascaded; the audit log outlives its subject.
	DeleteUser(ctx context.Context, userID string) error
}

type Invitations interface {
	// CreateInvitation writes a new invitation. A pending invitation already
	// existing for the email surfaces as ErrAlreadyExists (partial unique
	// index).
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	// GetInvitationByID returns an invitation by id.
	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)

	// GetInvitationByTokenHash looks an invitation up by its token
	// fingerprint, any status.
	GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// GetPendingInvitationByEmail returns the pending, unexpired invitation
	// for a normalized email, if one exists.
	GetPendingInvitationByEmail(ctx context.Context, email string, now time.Time) (domain.Invitation, error)

	// GetLatestInvitationByEmail returns the most recently issued invitation
	// for a normalized email regardless of status. Used by the offline
	// duplicate-resolution path.
	GetLatestInvitationByEmail(ctx context.Context, email string) (domain.Invitation, error)

	// ListInvitations returns all invitations, newest first.
	ListInvitations(ctx context.Context) ([]domain.Invitation, error)

	// AcceptInvitation atomically flips pending -> accepted and sets
	// accepted_at. Returns ErrNotFound when the row is absent or no longer
	// pending; that conditional update is the exactly-once guarantee for
	// token redemption.
	AcceptInvitation(ctx context.Context, id string, at time.Time) error

	// ExpireInvitation atomically flips pending -> expired. Returns
	// ErrNotFound when the row is absent or not pending. Idempotent from the
	// caller's perspective: a second call finds no pending row.
	ExpireInvitation(ctx context.Context, id string) error

	// RenewInvitation installs a fresh token fingerprint and expiry and
	// resets status to pending. Refuses accepted invitations (ErrNotFound).
	RenewInvitation(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// DeleteInvitation removes an unaccepted invitation (cancellation).
	// Accepted invitations are kept as the record of a redemption;
	// deleting one reports ErrNotFound and leaves the row in place.
	DeleteInvitation(ctx context.Context, id string) error

	// ExpireOverdueInvitations flips every pending invitation past its
	// expiry to expired and reports how many rows changed. Safe to run
	// repeatedly or concurrently.
	ExpireOverdueInvitations(ctx context.Context, now time.Time) (int64, error)
}

type RoleEvents interface {
	// AppendRoleEvent appends one entry to the role audit log.
	AppendRoleEvent(ctx context.Context, e domain.RoleEvent) error

	// ListRoleEventsByUser returns a user's role history, oldest first.
	ListRoleEventsByUser(ctx context.Context, userID string) ([]domain.RoleEvent, error)
}
