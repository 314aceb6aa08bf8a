package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/notify"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/skylensaero/identity/pkg/slogx"
)

var ErrSelfModification = errors.New("users may not change their own access flag")

// AccessService authorizes and records role and access changes. Every
// effective role change appends exactly one entry to the audit log; access
// changes emit a data event for the external audit view.
type AccessService struct {
	Store  store.Store
	Events notify.EventPublisher

	// TrustedAdminDomain is the email domain allowed to hold the admin role.
	TrustedAdminDomain string
}

// SetRole changes a user's role. Calls that restate the current role are
// no-ops and append nothing, so idempotent admin actions don't pollute the
// audit trail.
func (s *AccessService) SetRole(
	ctx context.Context,
	actorEmail string,
	targetUserID string,
	newRole domain.Role,
	reason string,
) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if !newRole.Valid() {
		return domain.User{}, ErrInvalidRequest
	}

	actor, err := s.requireAdmin(ctx, actorEmail)
	if err != nil {
		return domain.User{}, err
	}

	target, err := s.Store.Users().GetUserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	// Admin is reserved for trusted operator domain addresses.
	if newRole == domain.RoleAdmin && domain.EmailDomain(target.Email) != s.TrustedAdminDomain {
		log.Warn("admin role refused for untrusted domain",
			slog.String("target_id", target.ID),
		)
		return domain.User{}, ErrUntrustedAdminDomain
	}

	if target.Role == newRole {
		return target, nil
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateUserRole(ctx, target.ID, newRole); err != nil {
			return err
		}
		return tx.RoleEvents().AppendRoleEvent(ctx, domain.RoleEvent{
			ID:        idx.New().String(),
			UserID:    target.ID,
			Role:      newRole,
			ChangedBy: actor.Email,
			ChangedAt: now,
			Reason:    reason,
		})
	})
	if err != nil {
		return domain.User{}, err
	}

	target.Role = newRole
	target.UpdatedAt = now

	log.Info("role changed",
		slog.String("target_id", target.ID),
		slog.String("role", newRole.String()),
		slog.String("changed_by", actor.Email),
	)
	return target, nil
}

// SetAccess flips a user's access flag. A user can never change their own
// flag, which rules out accidental self-lockout and self-escalation alike.
func (s *AccessService) SetAccess(
	ctx context.Context,
	actorEmail string,
	targetUserID string,
	hasAccess bool,
	reason string,
) (domain.User, error) {
	log := slogx.FromContext(ctx)

	actor, err := s.requireAdmin(ctx, actorEmail)
	if err != nil {
		return domain.User{}, err
	}

	target, err := s.Store.Users().GetUserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if actor.ID == target.ID {
		return domain.User{}, ErrSelfModification
	}

	now := time.Now().UTC()
	if err := s.Store.Users().UpdateUserAccess(ctx, target.ID, hasAccess); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	target.HasAccess = hasAccess
	target.UpdatedAt = now

	action := domain.AccessDeactivated
	if hasAccess {
		action = domain.AccessActivated
	}

	// The event feeds the external audit view; publication failure does not
	// undo the committed change.
	if s.Events != nil {
		err := s.Events.PublishAccessEvent(ctx, domain.AccessEvent{
			UserID:    target.ID,
			Email:     target.Email,
			Action:    action,
			HasAccess: hasAccess,
			ChangedBy: actor.Email,
			ChangedAt: now,
			Reason:    reason,
		})
		if err != nil {
			log.Warn("access event publication failed",
				slog.String("target_id", target.ID),
				slog.Any("error", err),
			)
		}
	}

	log.Info("access changed",
		slog.String("target_id", target.ID),
		slog.String("action", string(action)),
		slog.String("changed_by", actor.Email),
	)
	return target, nil
}

// GetUser returns a user by id.
func (s *AccessService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	usr, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return usr, nil
}

// ListUsers returns all users, newest first.
func (s *AccessService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// RoleHistory returns a user's role audit trail, oldest first.
func (s *AccessService) RoleHistory(ctx context.Context, userID string) ([]domain.RoleEvent, error) {
	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Store.RoleEvents().ListRoleEventsByUser(ctx, userID)
}

// requireAdmin loads the acting user and checks the role-management
// capability: an admin role with access enabled.
func (s *AccessService) requireAdmin(ctx context.Context, actorEmail string) (domain.User, error) {
	actor, err := s.Store.Users().GetUserByEmail(ctx, actorEmail)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrPermissionDenied
		}
		return domain.User{}, err
	}
	if actor.Role != domain.RoleAdmin || !actor.HasAccess {
		return domain.User{}, ErrPermissionDenied
	}
	return actor, nil
}
