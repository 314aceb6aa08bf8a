package service

import (
	"context"
	"testing"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/store/drivers/sqlite"
	"github.com/skylensaero/identity/pkg/cryptox"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func seedInvitation(t *testing.T, st *sqlite.Store, email string, role domain.Role, status domain.InvitationStatus, invitedAt time.Time) domain.Invitation {
	t.Helper()

	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	require.NoError(t, err)

	inv := domain.Invitation{
		ID:        idx.New().String(),
		Email:     domain.NormalizeEmail(email),
		Name:      "Merged Person",
		Role:      role,
		HasAccess: true,
		TokenHash: cryptox.FingerprintToken(token),
		InvitedBy: "ops@skylens.io",
		InvitedAt: invitedAt,
		ExpiresAt: invitedAt.Add(7 * 24 * time.Hour),
		Status:    status,
	}
	require.NoError(t, st.Invitations().CreateInvitation(context.Background(), inv))
	return inv
}

func TestResolveDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invitation role picks the survivor", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		base := time.Now().UTC().Add(-time.Hour)
		older := seedUser(t, st, "dup@x.com", domain.RoleClient, true, base)
		newer := seedUser(t, st, "dup@x.com", domain.RolePilot, true, base.Add(time.Minute))
		seedInvitation(t, st, "dup@x.com", domain.RolePilot, domain.InvitationStatusAccepted, base)

		survivor, strategy, err := svc.ResolveDuplicates(ctx, "Dup@X.com")
		require.NoError(t, err)
		require.Equal(t, newer.ID, survivor.ID)
		require.Equal(t, domain.MergeByInvitationRole, strategy)
		require.Equal(t, domain.RolePilot, survivor.Role)

		// The loser is gone, the survivor remains.
		_, err = st.Users().GetUserByID(ctx, older.ID)
		require.Error(t, err)
		users, err := st.Users().ListUsersByEmail(ctx, "dup@x.com")
		require.NoError(t, err)
		require.Len(t, users, 1)
	})

	t.Run("falls back to the most recent account", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		base := time.Now().UTC().Add(-time.Hour)
		seedUser(t, st, "nobody@x.com", domain.RoleClient, true, base)
		newest := seedUser(t, st, "nobody@x.com", domain.RoleClient, false, base.Add(2*time.Minute))

		survivor, strategy, err := svc.ResolveDuplicates(ctx, "nobody@x.com")
		require.NoError(t, err)
		require.Equal(t, newest.ID, survivor.ID)
		require.Equal(t, domain.MergeByMostRecent, strategy)
	})

	t.Run("overlays invitation fields and audits the role change", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		base := time.Now().UTC().Add(-time.Hour)
		usr := seedUser(t, st, "grow@x.com", domain.RoleClient, false, base)
		seedInvitation(t, st, "grow@x.com", domain.RolePilot, domain.InvitationStatusAccepted, base)

		survivor, _, err := svc.ResolveDuplicates(ctx, "grow@x.com")
		require.NoError(t, err)
		require.Equal(t, usr.ID, survivor.ID)
		require.Equal(t, domain.RolePilot, survivor.Role)
		require.True(t, survivor.HasAccess)
		require.Equal(t, "Merged Person", survivor.Name)

		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, usr.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, SystemCleanupActor, events[0].ChangedBy)
		require.Contains(t, events[0].Reason, "duplicate identity merge")
	})

	t.Run("exact creation tie without an invitation is refused", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		at := time.Now().UTC().Truncate(time.Second)
		a := seedUser(t, st, "tied@x.com", domain.RoleClient, true, at)
		b := seedUser(t, st, "tied@x.com", domain.RolePilot, true, at)

		_, strategy, err := svc.ResolveDuplicates(ctx, "tied@x.com")
		require.ErrorIs(t, err, ErrMergeConflict)
		require.Equal(t, domain.MergeManualReview, strategy)

		// Nothing was deleted.
		for _, id := range []string{a.ID, b.ID} {
			_, err := st.Users().GetUserByID(ctx, id)
			require.NoError(t, err)
		}
	})

	t.Run("an invitation role breaks an exact creation tie", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		at := time.Now().UTC().Truncate(time.Second)
		seedUser(t, st, "saved@x.com", domain.RoleClient, true, at)
		pilot := seedUser(t, st, "saved@x.com", domain.RolePilot, true, at)
		seedInvitation(t, st, "saved@x.com", domain.RolePilot, domain.InvitationStatusAccepted, at)

		survivor, strategy, err := svc.ResolveDuplicates(ctx, "saved@x.com")
		require.NoError(t, err)
		require.Equal(t, pilot.ID, survivor.ID)
		require.Equal(t, domain.MergeByInvitationRole, strategy)
	})

	t.Run("idempotent on a clean email", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		base := time.Now().UTC().Add(-time.Hour)
		seedUser(t, st, "stable@x.com", domain.RoleClient, true, base)
		seedUser(t, st, "stable@x.com", domain.RolePilot, true, base.Add(time.Minute))
		seedInvitation(t, st, "stable@x.com", domain.RolePilot, domain.InvitationStatusAccepted, base)

		first, _, err := svc.ResolveDuplicates(ctx, "stable@x.com")
		require.NoError(t, err)

		eventsAfterFirst, err := st.RoleEvents().ListRoleEventsByUser(ctx, first.ID)
		require.NoError(t, err)

		second, _, err := svc.ResolveDuplicates(ctx, "stable@x.com")
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)

		// A re-run changes nothing and appends nothing.
		eventsAfterSecond, err := st.RoleEvents().ListRoleEventsByUser(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, len(eventsAfterFirst), len(eventsAfterSecond))
	})

	t.Run("consumes a still-pending invitation", func(t *testing.T) {
		st := newTestStore(t)
		svc := &MergeService{Store: st}

		base := time.Now().UTC().Add(-time.Hour)
		seedUser(t, st, "open@x.com", domain.RolePilot, true, base)
		inv := seedInvitation(t, st, "open@x.com", domain.RolePilot, domain.InvitationStatusPending, base)

		_, _, err := svc.ResolveDuplicates(ctx, "open@x.com")
		require.NoError(t, err)

		stored, err := st.Invitations().GetInvitationByID(ctx, inv.ID)
		require.NoError(t, err)
		require.Equal(t, domain.InvitationStatusAccepted, stored.Status)
	})

	t.Run("no users for the email", func(t *testing.T) {
		svc := &MergeService{Store: newTestStore(t)}

		_, _, err := svc.ResolveDuplicates(ctx, "ghost@x.com")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}
