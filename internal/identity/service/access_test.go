package service

import (
	"context"
	"testing"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestSetRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("changes the role and appends an audit entry", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		updated, err := svc.SetRole(ctx, admin.Email, target.ID, domain.RolePilot, "completed flight training")
		require.NoError(t, err)
		require.Equal(t, domain.RolePilot, updated.Role)

		stored, err := st.Users().GetUserByID(ctx, target.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RolePilot, stored.Role)

		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, domain.RolePilot, events[0].Role)
		require.Equal(t, admin.Email, events[0].ChangedBy)
		require.Equal(t, "completed flight training", events[0].Reason)
	})

	t.Run("restating the current role appends nothing", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, admin.Email, target.ID, domain.RoleClient, "noop")
		require.NoError(t, err)

		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, target.ID)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("non-admin actors are refused", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		actor := seedUser(t, st, "pilot@example.com", domain.RolePilot, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, actor.Email, target.ID, domain.RolePilot, "")
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("deactivated admins are refused", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		actor := seedUser(t, st, "former@skylens.io", domain.RoleAdmin, false, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, actor.Email, target.ID, domain.RolePilot, "")
		require.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("admin grant off the trusted domain leaves history unchanged", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, admin.Email, target.ID, domain.RoleAdmin, "promotion")
		require.ErrorIs(t, err, ErrUntrustedAdminDomain)

		stored, err := st.Users().GetUserByID(ctx, target.ID)
		require.NoError(t, err)
		require.Equal(t, domain.RoleClient, stored.Role)

		events, err := st.RoleEvents().ListRoleEventsByUser(ctx, target.ID)
		require.NoError(t, err)
		require.Empty(t, events)
	})

	t.Run("unknown target", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, admin.Email, "missing", domain.RolePilot, "")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestSetAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deactivates a user and publishes the event", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		svc := &AccessService{Store: st, Events: bus, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		updated, err := svc.SetAccess(ctx, admin.Email, target.ID, false, "contract ended")
		require.NoError(t, err)
		require.False(t, updated.HasAccess)

		stored, err := st.Users().GetUserByID(ctx, target.ID)
		require.NoError(t, err)
		require.False(t, stored.HasAccess)

		events := bus.Events()
		require.Len(t, events, 1)
		require.Equal(t, target.ID, events[0].UserID)
		require.Equal(t, domain.AccessDeactivated, events[0].Action)
		require.Equal(t, admin.Email, events[0].ChangedBy)
		require.Equal(t, "contract ended", events[0].Reason)
	})

	t.Run("reactivation publishes the opposite action", func(t *testing.T) {
		st := newTestStore(t)
		bus := &stubBus{}
		svc := &AccessService{Store: st, Events: bus, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, false, time.Now().UTC())

		updated, err := svc.SetAccess(ctx, admin.Email, target.ID, true, "")
		require.NoError(t, err)
		require.True(t, updated.HasAccess)

		events := bus.Events()
		require.Len(t, events, 1)
		require.Equal(t, domain.AccessActivated, events[0].Action)
	})

	t.Run("admins cannot change their own flag", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, Events: &stubBus{}, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())

		_, err := svc.SetAccess(ctx, admin.Email, admin.ID, false, "oops")
		require.ErrorIs(t, err, ErrSelfModification)

		stored, err := st.Users().GetUserByID(ctx, admin.ID)
		require.NoError(t, err)
		require.True(t, stored.HasAccess)
	})

	t.Run("non-admin actors are refused", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, Events: &stubBus{}, TrustedAdminDomain: "skylens.io"}

		actor := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())
		target := seedUser(t, st, "other@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetAccess(ctx, actor.Email, target.ID, false, "")
		require.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestRoleHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("returns events oldest first", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st, TrustedAdminDomain: "skylens.io"}

		admin := seedUser(t, st, "boss@skylens.io", domain.RoleAdmin, true, time.Now().UTC())
		target := seedUser(t, st, "member@example.com", domain.RoleClient, true, time.Now().UTC())

		_, err := svc.SetRole(ctx, admin.Email, target.ID, domain.RolePilot, "first")
		require.NoError(t, err)
		_, err = svc.SetRole(ctx, admin.Email, target.ID, domain.RoleClient, "second")
		require.NoError(t, err)

		events, err := svc.RoleHistory(ctx, target.ID)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "first", events[0].Reason)
		require.Equal(t, "second", events[1].Reason)
	})

	t.Run("unknown user", func(t *testing.T) {
		st := newTestStore(t)
		svc := &AccessService{Store: st}

		_, err := svc.RoleHistory(ctx, "missing")
		require.ErrorIs(t, err, ErrUserNotFound)
	})
}
