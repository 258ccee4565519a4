package login_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"labgate/internal/login"
	"labgate/internal/login/store"
	"labgate/internal/provider"
	"labgate/internal/ratelimit"
	sessionstore "labgate/internal/session/store"
	dErrors "labgate/pkg/domain-errors"
)

const (
	officeIP = "203.0.113.10"
	homeIP   = "198.51.100.7"
)

type fixture struct {
	svc      *login.Service
	stub     *provider.StubClient
	admins   *store.InMemoryAdminStore
	sessions *sessionstore.InMemoryStore
	clock    *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T, opts ...login.Option) *fixture {
	t.Helper()
	f := &fixture{
		stub:     provider.NewStubClient(),
		admins:   store.NewInMemory(),
		sessions: sessionstore.NewInMemory(),
		clock:    &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	tokens := login.NewTokenIssuer("test-signing-key", 12*time.Hour)
	opts = append([]login.Option{login.WithClock(f.clock.Now)}, opts...)
	svc, err := login.New(f.admins, f.sessions, f.stub, tokens,
		login.Config{PortalType: "DSA", UserType: "DSA", SessionTTL: 24 * time.Hour},
		opts...,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func input(ip string) login.Input {
	return login.Input{
		Username:  "acme-dsa",
		Password:  "s3cret",
		IPAddress: ip,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0",
	}
}

func TestLogin_FirstLoginIsFresh(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	assert.Equal(t, login.LoginTypeFresh, result.LoginType)
	assert.NotEmpty(t, result.APIKey)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, int64(1), f.stub.LoginCalls())

	// The profile is cached with a usable bcrypt hash for the fast path.
	admin, err := f.admins.FindByUsername(context.Background(), "acme-dsa")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret")))
	assert.True(t, admin.TrackingPrivilege)
}

func TestLogin_SecondLoginSameIPReusesWithoutProviderCall(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	assert.Equal(t, login.LoginTypeRefreshed, second.LoginType)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.APIKey, second.APIKey)
	assert.Equal(t, int64(1), f.stub.LoginCalls(), "reuse must not contact the provider")

	sess, err := f.sessions.FindByID(context.Background(), second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.UsageCount)
}

func TestLogin_DifferentIPGetsItsOwnSession(t *testing.T) {
	f := newFixture(t)

	office, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	home, err := f.svc.Login(context.Background(), input(homeIP))
	require.NoError(t, err)

	assert.Equal(t, login.LoginTypeFresh, home.LoginType)
	assert.NotEqual(t, office.SessionID, home.SessionID)
	assert.NotEqual(t, office.APIKey, home.APIKey, "a key issued for one IP is never handed to another")
	assert.Equal(t, int64(2), f.stub.LoginCalls())

	// Both sessions stay usable independently.
	f.clock.Advance(time.Minute)
	again, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)
	assert.Equal(t, login.LoginTypeRefreshed, again.LoginType)
	assert.Equal(t, office.SessionID, again.SessionID)
}

func TestLogin_ExpiredSessionForcesFreshLogin(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	second, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	assert.Equal(t, login.LoginTypeFresh, second.LoginType)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(2), f.stub.LoginCalls())
}

func TestLogin_ReuseSurvivesProviderOutage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	// Provider goes down; the cached session still serves the same IP.
	f.stub.FailWith = dErrors.New(dErrors.CodeUnavailable, "connection refused")
	f.clock.Advance(time.Hour)

	result, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)
	assert.Equal(t, login.LoginTypeRefreshed, result.LoginType)
}

func TestLogin_WrongPasswordGoesToProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	// The local hash mismatch must not reject outright; the provider stays
	// authoritative for credentials.
	f.stub.RejectLogins = true
	bad := input(officeIP)
	bad.Password = "wrong"
	_, err = f.svc.Login(context.Background(), bad)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, int64(2), f.stub.LoginCalls())
}

func TestLogin_PasswordChangeUpdatesLocalHash(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	changed := input(homeIP)
	changed.Password = "rotated-upstream"
	_, err = f.svc.Login(context.Background(), changed)
	require.NoError(t, err)

	admin, err := f.admins.FindByUsername(context.Background(), "acme-dsa")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("rotated-upstream")))
}

func TestLogin_ProviderBlockSurfaces(t *testing.T) {
	f := newFixture(t)
	f.stub.BlockLogins = true

	_, err := f.svc.Login(context.Background(), input(officeIP))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderBlocked))
}

func TestLogin_RateLimiterRejectsBeforeProvider(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute, 100, time.Minute)
	f := newFixture(t, login.WithRateLimiter(limiter))

	_, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), input(officeIP))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeRateLimited))
	assert.Equal(t, int64(1), f.stub.LoginCalls(), "throttled requests never reach the provider")
}

func TestLogin_MissingFieldsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), login.Input{Username: "acme-dsa", IPAddress: officeIP})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.svc.Login(context.Background(), login.Input{Username: "acme-dsa", Password: "pw"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	assert.Zero(t, f.stub.LoginCalls())
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	adminID, sessionID, err := f.svc.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Admin.ID, adminID)
	assert.Equal(t, result.SessionID, sessionID)
}

func TestSessions_ListsHistory(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Login(context.Background(), input(officeIP))
	require.NoError(t, err)

	sessions, err := f.svc.Sessions(context.Background(), first.Admin.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
