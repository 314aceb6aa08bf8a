package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/notify"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/cryptox"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/skylensaero/identity/pkg/slogx"
)

var (
	ErrInvalidToken     = errors.New("invitation token is not recognized")
	ErrTokenExpired     = errors.New("invitation token has expired")
	ErrStatusConflict   = errors.New("invitation is no longer pending")
	ErrIdentityMismatch = errors.New("authenticated email does not match the invitation")
)

// RedeemService turns a valid invitation token plus an authenticated email
// into a user account.
type RedeemService struct {
	Store    store.Store
	Notifier notify.Notifier

	// NotifyTimeout bounds the post-redemption welcome delivery.
	NotifyTimeout time.Duration
}

// Redeem consumes an invitation token. The authenticated email comes from
// the external identity provider and must match the invited address, which
// keeps a leaked token useless to anyone else.
//
// Redemption is exactly-once per token: the pending -> accepted transition is
// a conditional update inside the same transaction that creates or merges
// the user, so of N concurrent callers exactly one wins and the rest get
// ErrStatusConflict.
func (s *RedeemService) Redeem(
	ctx context.Context,
	token string,
	authenticatedEmail string,
) (domain.User, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Validate input.
	if token == "" || authenticatedEmail == "" {
		return domain.User{}, ErrInvalidRequest
	}
	email := domain.NormalizeEmail(authenticatedEmail)

	// 2. Look the invitation up by token fingerprint.
	inv, err := s.Store.Invitations().GetInvitationByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("redemption attempted with unknown token")
			return domain.User{}, ErrInvalidToken
		}
		log.Error("failed to fetch invitation", slog.Any("error", err))
		return domain.User{}, err
	}

	// 3. Expiry wins over status: a stale pending row is expired even if the
	// sweep has not observed it yet. Flip it now, keep it for audit.
	if inv.IsExpired(now) {
		if err := s.Store.Invitations().ExpireInvitation(ctx, inv.ID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			log.Error("failed to expire overdue invitation", slog.Any("error", err))
		}
		return domain.User{}, ErrTokenExpired
	}

	// 4. Already accepted (or otherwise not pending).
	if inv.Status != domain.InvitationStatusPending {
		return domain.User{}, ErrStatusConflict
	}

	// 5. The token must be redeemed under the invited identity.
	if email != inv.Email {
		log.Warn("redemption identity mismatch",
			slog.String("invitation_id", inv.ID),
		)
		return domain.User{}, ErrIdentityMismatch
	}

	// 6. Claim the invitation and create or merge the user atomically.
	var usr domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// The conditional accept is the exactly-once gate; losers of a
		// concurrent race stop here.
		if err := tx.Invitations().AcceptInvitation(ctx, inv.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrStatusConflict
			}
			return err
		}

		existing, err := tx.Users().ListUsersByEmail(ctx, inv.Email)
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			usr = domain.User{
				ID:        idx.New().String(),
				Name:      inv.Name,
				Email:     inv.Email,
				Role:      inv.Role,
				HasAccess: inv.HasAccess,
				Company:   inv.Company,
				Phone:     inv.Phone,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Users().CreateUser(ctx, usr); err != nil {
				return err
			}

			return tx.RoleEvents().AppendRoleEvent(ctx, domain.RoleEvent{
				ID:        idx.New().String(),
				UserID:    usr.ID,
				Role:      usr.Role,
				ChangedBy: inv.InvitedBy,
				ChangedAt: now,
				Reason:    "invitation accepted",
			})
		}

		// A user already holds this email (e.g. a federated sign-in raced
		// the invitation); merge instead of creating a second record.
		accepted := inv
		accepted.Status = domain.InvitationStatusAccepted
		usr, _, err = mergeDuplicates(ctx, tx, inv.Email, &accepted, email)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	log.Info("invitation redeemed",
		slog.String("invitation_id", inv.ID),
		slog.String("user_id", usr.ID),
		slog.String("role", usr.Role.String()),
	)

	// 7. Welcome message is best-effort; redemption already committed.
	s.welcome(ctx, usr)

	return usr, nil
}

func (s *RedeemService) welcome(ctx context.Context, usr domain.User) {
	log := slogx.FromContext(ctx)

	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.Notifier.Send(ctx, usr.Email, notify.TemplateWelcome, map[string]string{
		"name": usr.Name,
		"role": usr.Role.String(),
	})
	if err != nil {
		log.Warn("welcome notification delivery failed",
			slog.String("user_id", usr.ID),
			slog.Any("error", err),
		)
	}
}
