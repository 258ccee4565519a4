package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labgate/internal/audit"
	"labgate/internal/session"
	sessionstore "labgate/internal/session/store"
	id "labgate/pkg/domain"
)

func seed(t *testing.T, store *sessionstore.InMemoryStore, createdAt time.Time, keyTTL time.Duration) *session.Session {
	t.Helper()
	sess := &session.Session{
		ID:              id.NewSessionID(),
		AdminID:         id.NewAdminID(),
		IPAddress:       "203.0.113.10",
		APIKey:          "key",
		CreatedAt:       createdAt,
		APIKeyExpiresAt: createdAt.Add(keyTTL),
		ExpiresAt:       createdAt.Add(keyTTL),
		Active:          true,
	}
	require.NoError(t, store.ReplaceActive(context.Background(), sess))
	return sess
}

func TestSweep_DeactivatesExpiredOnly(t *testing.T) {
	store := sessionstore.NewInMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	expired := seed(t, store, now.Add(-2*time.Hour), time.Hour)
	fresh := seed(t, store, now.Add(-time.Minute), 24*time.Hour)

	auditStore := audit.NewInMemoryStore()
	w, err := New(store,
		WithClock(func() time.Time { return now }),
		WithAuditPublisher(audit.NewPublisher(auditStore)),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, w.Sweep(context.Background()))

	got, err := store.FindByID(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = store.FindByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	events := auditStore.All()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionSessionSwept, events[0].Action)
}

func TestSweep_NothingExpiredEmitsNothing(t *testing.T) {
	store := sessionstore.NewInMemory()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed(t, store, now.Add(-time.Minute), 24*time.Hour)

	auditStore := audit.NewInMemoryStore()
	w, err := New(store,
		WithClock(func() time.Time { return now }),
		WithAuditPublisher(audit.NewPublisher(auditStore)),
	)
	require.NoError(t, err)

	assert.Zero(t, w.Sweep(context.Background()))
	assert.Empty(t, auditStore.All())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := sessionstore.NewInMemory()
	w, err := New(store, WithInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
