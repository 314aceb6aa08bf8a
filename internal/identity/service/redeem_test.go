package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/notify"
	"github.com/skylensaero/identity/pkg/cryptox"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestRedeem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	issue := func(t *testing.T, svc *InviteService, email string, role string) (domain.Invitation, string) {
		t.Helper()
		inv, token, err := svc.Issue(ctx, "ops@skylens.io", IssueRequest{
			Email:     email,
			Name:      "Invited Person",
			Role:      role,
			HasAccess: true,
		})
		require.NoError(t, err)
		return inv, token
	}

	t.Run("provisions a user and records the role grant", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		inviter := &InviteService{Store: st, Notifier: bus}
		redeemer := &RedeemService{Store: st, Notifier: bus}

		inv, token := issue(t, inviter, "fresh@example.com", "pilot")

		usr, err := redeemer.Redeem(ctx, token, "Fresh@Example.com")
		require.NoError(t, err)
		require.Equal(t, "fresh@example.com", usr.Email)
		require.Equal(t, domain.RolePilot, usr.Role)
		require.True(t, usr.HasAccess)
		require.Equal(t, "Invited Person", usr.Name)

		stored, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationStatusAccepted, stored.Status)
		require.NotNil(t, stored.AcceptedAt)

		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, domain.RolePilot, events[0].Role)
		require.Equal(t, "ops@skylens.io", events[0].ChangedBy)
		require.Equal(t, "invitation accepted", events[0].Reason)

		// Invite plus welcome.
		sent := bus.Sent()
		require.Len(t, sent, 2)
		require.Equal(t, notify.TemplateWelcome, sent[1].Template)
	})

	t.Run("unknown token", func(t *testing.T) {
		redeemer := &RedeemService{Store: newTestStore(t), Notifier: &stubBus{}}
		_, err := redeemer.Redeem(ctx, "bogus-token", "who@example.com")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty input", func(t *testing.T) {
		redeemer := &RedeemService{Store: newTestStore(t), Notifier: &stubBus{}}
		_, err := redeemer.Redeem(ctx, "", "who@example.com")
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("identity mismatch leaves the invitation pending", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		inviter := &InviteService{Store: st, Notifier: bus}
		redeemer := &RedeemService{Store: st, Notifier: bus}

		inv, token := issue(t, inviter, "intended@example.com", "client")

		_, err := redeemer.Redeem(ctx, token, "attacker@example.com")
		require.ErrorIs(t, err, ErrIdentityMismatch)

		stored, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationStatusPending, stored.Status)

		// The rightful holder can still redeem.
		_, err = redeemer.Redeem(ctx, token, "intended@example.com")
		require.NoError(t, err)
	})

	t.Run("second redemption is refused", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		inviter := &InviteService{Store: st, Notifier: bus}
		redeemer := &RedeemService{Store: st, Notifier: bus}

		_, token := issue(t, inviter, "once@example.com", "client")

		_, err := redeemer.Redeem(ctx, token, "once@example.com")
		require.NoError(t, err)

		_, err = redeemer.Redeem(ctx, token, "once@example.com")
		require.ErrorIs(t, err, ErrStatusConflict)

		users, err := st.Users().ListUsersByEmail(ctx, "once@example.com")
		require.NoError(t, err)
		require.Len(t, users, 1)
	})

	t.Run("expired token flips status and mutates nothing else", func(t *testing.T) {
		st := newTestStore(t)
		redeemer := &RedeemService{Store: st, Notifier: &stubBus{}}

		// Write an already-overdue invitation directly; the sweep has not
		// seen it yet so the row still says pending.
		token, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)
		inv := domain.Invitation{
			ID:        idx.New().String(),
			Email:     "late@example.com",
			Name:      "Late",
			Role:      domain.RoleClient,
			TokenHash: cryptox.FingerprintToken(token),
			InvitedBy: "ops@skylens.io",
			InvitedAt: time.Now().UTC().Add(-48 * time.Hour),
			ExpiresAt: time.Now().UTC().Add(-24 * time.Hour),
			Status:    domain.InvitationStatusPending,
		}
		require.NoError(t, st.Invitations().CreateInvitation(ctx, inv))

		_, err = redeemer.Redeem(ctx, token, "late@example.com")
		require.ErrorIs(t, err, ErrTokenExpired)

		stored, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationStatusExpired, stored.Status)

		users, err := st.Users().ListUsersByEmail(ctx, "late@example.com")
		require.NoError(t, err)
		require.Empty(t, users)
	})

	t.Run("merges into an existing account instead of duplicating", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		inviter := &InviteService{Store: st, Notifier: bus}
		redeemer := &RedeemService{Store: st, Notifier: bus}

		// A federated sign-in created a bare account before the invitation
		// was redeemed.
		existing := seedUser(t, st, "raced@example.com", domain.RoleClient, false, time.Now().UTC().Add(-time.Hour))

		_, token := issue(t, inviter, "raced@example.com", "pilot")

		usr, err := redeemer.Redeem(ctx, token, "raced@example.com")
		require.NoError(t, err)
		require.Equal(t, existing.ID, usr.ID)
		require.Equal(t, domain.RolePilot, usr.Role)
		require.True(t, usr.HasAccess)

		users, err := st.Users().ListUsersByEmail(ctx, "raced@example.com")
		require.NoError(t, err)
		require.Len(t, users, 1)

		// The role overlay is audited.
		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Contains(t, events[0].Reason, "duplicate identity merge")
	})
}

func TestRedeemConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)
	bus := &stubBus{}
	inviter := &InviteService{Store: st, Notifier: bus}
	redeemer := &RedeemService{Store: st, Notifier: bus}

	_, token, err := inviter.Issue(ctx, "ops@skylens.io", IssueRequest{
		Email: "contended@example.com",
		Name:  "Contended",
		Role:  "client",
	})
	require.NoError(t, err)

	const attempts = 16
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = redeemer.Redeem(ctx, token, "contended@example.com")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, ErrStatusConflict)
		}
	}
	require.Equal(t, 1, winners)

	users, err := st.Users().ListUsersByEmail(ctx, "contended@example.com")
	require.NoError(t, err)
	require.Len(t, users, 1)
}
