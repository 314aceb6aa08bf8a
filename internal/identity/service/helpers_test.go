package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skylensaero/identity/internal/identity/domain"
	"github.com/skylensaero/identity/internal/identity/store/drivers/sqlite"
	"github.com/skylensaero/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

// sentMessage captures one Notifier.Send call.
type sentMessage struct {
	Email    string
	Template string
	Vars     map[string]string
}

// stubBus records outbound traffic and can be told to fail sends, which
// stands in for a broker outage.
type stubBus struct {
	mu        sync.Mutex
	sends     []sentMessage
	events    []domain.AccessEvent
	failSends bool
}

func (b *stubBus) Send(_ context.Context, email, template string, vars map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSends {
		return errTestDelivery
	}
	b.sends = append(b.sends, sentMessage{Email: email, Template: template, Vars: vars})
	return nil
}

func (b *stubBus) PublishAccessEvent(_ context.Context, e domain.AccessEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *stubBus) Sent() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentMessage(nil), b.sends...)
}

func (b *stubBus) Events() []domain.AccessEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.AccessEvent(nil), b.events...)
}

var errTestDelivery = errors.New("delivery refused")

// seedUser inserts a user directly into the store.
func seedUser(t *testing.T, st *sqlite.Store, email string, role domain.Role, hasAccess bool, createdAt time.Time) domain.User {
	t.Helper()

	u := domain.User{
		ID:        idx.New().String(),
		Name:      "Seeded User",
		Email:     domain.NormalizeEmail(email),
		Role:      role,
		HasAccess: hasAccess,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}
