package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/skylensaero/identity/pkg/slogx"
)

var (
	ErrMergeConflict = errors.New("no deterministic winner among duplicate users")
	ErrUserNotFound  = errors.New("user not found")
)

// SystemCleanupActor is recorded as the change author when duplicates are
// resolved through the offline maintenance path rather than a redemption.
const SystemCleanupActor = "system-cleanup"

// MergeService resolves multiple user records bound to one email into a
// single survivor. Duplicates should not occur under the issuer/redeemer
// checks, but historical races and pre-index data can still produce them.
type MergeService struct {
	Store store.Store
}

// ResolveDuplicates is the idempotent maintenance entry point. It loads every
// user for the email plus the most recent invitation, picks a survivor,
// overlays invitation fields, and deletes the losers in one transaction, so
// no reader observes a half-merged state.
func (s *MergeService) ResolveDuplicates(
	ctx context.Context,
	email string,
) (domain.User, domain.MergeStrategy, error) {
	log := slogx.FromContext(ctx)
	email = domain.NormalizeEmail(email)

	var (
		survivor domain.User
		strategy domain.MergeStrategy
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var inv *domain.Invitation
		latest, err := tx.Invitations().GetLatestInvitationByEmail(ctx, email)
		switch {
		case err == nil:
			inv = &latest
		case errors.Is(err, store.ErrNotFound):
			// No invitation; selection falls back to creation time.
		default:
			return err
		}

		survivor, strategy, err = mergeDuplicates(ctx, tx, email, inv, SystemCleanupActor)
		return err
	})
	if err != nil {
		// An exact tie carries the manual-review tag alongside the error,
		// so operators can see why the merge was refused.
		return domain.User{}, strategy, err
	}

	log.Info("duplicate identities resolved",
		slog.String("email", email),
		slog.String("survivor_id", survivor.ID),
		slog.String("strategy", strategy.String()),
	)
	return survivor, strategy, nil
}

// mergeDuplicates runs the merge algorithm inside the caller's transaction.
// The redeemer calls it directly so redemption-triggered merges share the
// redeem transaction.
func mergeDuplicates(
	ctx context.Context,
	tx store.Tx,
	email string,
	inv *domain.Invitation,
	actor string,
) (domain.User, domain.MergeStrategy, error) {
	users, err := tx.Users().ListUsersByEmail(ctx, email)
	if err != nil {
		return domain.User{}, "", err
	}
	if len(users) == 0 {
		return domain.User{}, "", ErrUserNotFound
	}

	survivor, strategy, err := selectSurvivor(users, inv)
	if err != nil {
		return domain.User{}, strategy, err
	}

	// Overlay invitation fields onto the survivor. The role event is only
	// appended when the role actually changes, keeping re-runs silent.
	if inv != nil {
		changed := survivor.Role != inv.Role ||
			survivor.HasAccess != inv.HasAccess ||
			survivor.Name != inv.Name
		roleChanged := survivor.Role != inv.Role

		survivor.Role = inv.Role
		survivor.HasAccess = inv.HasAccess
		survivor.Name = inv.Name
		if inv.Company != "" && survivor.Company != inv.Company {
			survivor.Company = inv.Company
			changed = true
		}
		if inv.Phone != "" && survivor.Phone != inv.Phone {
			survivor.Phone = inv.Phone
			changed = true
		}

		if changed {
			if err := tx.Users().UpdateUserProfile(ctx, survivor); err != nil {
				return domain.User{}, strategy, err
			}
		}
		if roleChanged {
			event := domain.RoleEvent{
				ID:        idx.New().String(),
				UserID:    survivor.ID,
				Role:      survivor.Role,
				ChangedBy: actor,
				ChangedAt: time.Now().UTC(),
				Reason:    "duplicate identity merge (" + strategy.String() + ")",
			}
			if err := tx.RoleEvents().AppendRoleEvent(ctx, event); err != nil {
				return domain.User{}, strategy, err
			}
		}

		if inv.Status == domain.InvitationStatusPending {
			err := tx.Invitations().AcceptInvitation(ctx, inv.ID, time.Now().UTC())
			// A concurrent or earlier accept already consumed it; fine.
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return domain.User{}, strategy, err
			}
		}
	}

	for _, u := range users {
		if u.ID == survivor.ID {
			continue
		}
		if err := tx.Users().DeleteUser(ctx, u.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, strategy, err
		}
	}

	return survivor, strategy, nil
}

// selectSurvivor applies the deterministic survivor policy: a user matching
// the invitation's role wins; otherwise the most recently created user wins;
// an exact creation-time tie has no deterministic winner and is refused for
// manual review instead of silently picking one.
func selectSurvivor(users []domain.User, inv *domain.Invitation) (domain.User, domain.MergeStrategy, error) {
	if inv != nil {
		var matches []domain.User
		for _, u := range users {
			if u.Role == inv.Role {
				matches = append(matches, u)
			}
		}
		if len(matches) == 1 {
			return matches[0], domain.MergeByInvitationRole, nil
		}
		if len(matches) > 1 {
			winner, ok := mostRecent(matches)
			if !ok {
				return domain.User{}, domain.MergeManualReview, ErrMergeConflict
			}
			return winner, domain.MergeByInvitationRole, nil
		}
	}

	if len(users) == 1 {
		return users[0], domain.MergeByMostRecent, nil
	}

	winner, ok := mostRecent(users)
	if !ok {
		return domain.User{}, domain.MergeManualReview, ErrMergeConflict
	}
	return winner, domain.MergeByMostRecent, nil
}

// mostRecent returns the user with the strictly greatest creation time.
// ok is false when the maximum is shared.
func mostRecent(users []domain.User) (domain.User, bool) {
	best := users[0]
	tied := false
	for _, u := range users[1:] {
		switch {
		case u.CreatedAt.After(best.CreatedAt):
			best = u
			tied = false
		case u.CreatedAt.Equal(best.CreatedAt):
			tied = true
		}
	}
	return best, !tied
}
