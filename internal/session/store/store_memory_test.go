package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labgate/internal/session"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

func makeSession(adminID id.AdminID, ip string, createdAt time.Time) *session.Session {
	return &session.Session{
		ID:              id.NewSessionID(),
		AdminID:         adminID,
		IPAddress:       ip,
		APIKey:          "key-" + ip,
		CreatedAt:       createdAt,
		APIKeyExpiresAt: createdAt.Add(24 * time.Hour),
		ExpiresAt:       createdAt.Add(24 * time.Hour),
		LastUsageAt:     createdAt,
		UsageCount:      1,
		Active:          true,
	}
}

func TestReplaceActive_DeactivatesPriorSessionForSamePair(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeSession(adminID, "203.0.113.10", now)
	require.NoError(t, store.ReplaceActive(ctx, first))

	second := makeSession(adminID, "203.0.113.10", now.Add(time.Minute))
	require.NoError(t, store.ReplaceActive(ctx, second))

	got, err := store.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.Active, "prior session for the same pair must be deactivated")

	usable, err := store.FindUsableByAdminIP(ctx, adminID, "203.0.113.10", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, second.ID, usable.ID)
}

func TestReplaceActive_DifferentIPsCoexist(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	office := makeSession(adminID, "203.0.113.10", now)
	home := makeSession(adminID, "198.51.100.7", now)
	require.NoError(t, store.ReplaceActive(ctx, office))
	require.NoError(t, store.ReplaceActive(ctx, home))

	gotOffice, err := store.FindUsableByAdminIP(ctx, adminID, "203.0.113.10", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, office.ID, gotOffice.ID)

	gotHome, err := store.FindUsableByAdminIP(ctx, adminID, "198.51.100.7", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, home.ID, gotHome.ID)
}

func TestFindUsableByAdminIP_NeverReturnsOtherIPSession(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceActive(ctx, makeSession(adminID, "203.0.113.10", now)))

	_, err := store.FindUsableByAdminIP(ctx, adminID, "198.51.100.7", now.Add(time.Minute))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestFindUsableByAdminIP_SkipsExpired(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sess := makeSession(adminID, "203.0.113.10", now)
	sess.APIKeyExpiresAt = now.Add(time.Hour)
	require.NoError(t, store.ReplaceActive(ctx, sess))

	_, err := store.FindUsableByAdminIP(ctx, adminID, "203.0.113.10", now.Add(2*time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUpdateUsage_PersistsCounters(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sess := makeSession(adminID, "203.0.113.10", now)
	require.NoError(t, store.ReplaceActive(ctx, sess))

	sess.RecordUsage(now.Add(time.Hour))
	require.NoError(t, store.UpdateUsage(ctx, sess))

	got, err := store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
	assert.Equal(t, now.Add(time.Hour), got.LastUsageAt)
}

func TestListByAdmin_NewestFirstIncludesInactive(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	adminID := id.NewAdminID()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	old := makeSession(adminID, "203.0.113.10", now)
	require.NoError(t, store.ReplaceActive(ctx, old))
	replacement := makeSession(adminID, "203.0.113.10", now.Add(time.Hour))
	require.NoError(t, store.ReplaceActive(ctx, replacement))
	require.NoError(t, store.ReplaceActive(ctx, makeSession(id.NewAdminID(), "203.0.113.10", now)))

	sessions, err := store.ListByAdmin(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, replacement.ID, sessions[0].ID)
	assert.Equal(t, old.ID, sessions[1].ID)
	assert.False(t, sessions[1].Active, "deactivated sessions stay listed")
}

func TestDeactivateExpired_SweepsOnlyExpired(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fresh := makeSession(id.NewAdminID(), "203.0.113.10", now)
	stale := makeSession(id.NewAdminID(), "198.51.100.7", now)
	stale.APIKeyExpiresAt = now.Add(time.Minute)
	require.NoError(t, store.ReplaceActive(ctx, fresh))
	require.NoError(t, store.ReplaceActive(ctx, stale))

	swept, err := store.DeactivateExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := store.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = store.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	// A second sweep finds nothing new.
	swept, err = store.DeactivateExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, swept)
}
