package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func failing(context.Context) error    { return errBoom }
func succeeding(context.Context) error { return nil }

func trip(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for j := 0; j < n; j++ {
		err := b.Execute(context.Background(), failing)
		require.ErrorIs(t, err, errBoom)
	}
}

func TestExecute_StaysClosedBelowThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	trip(t, b, 2)
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_OpensAtThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	trip(t, b, 3)
	assert.Equal(t, StateOpen, b.State())
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	trip(t, b, 2)
	require.NoError(t, b.Execute(context.Background(), succeeding))
	trip(t, b, 2)

	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_OpenRejectsWithoutInvoking(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))

	trip(t, b, 1)
	require.Equal(t, StateOpen, b.State())

	invoked := false
	err := b.Execute(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, invoked)
}

func TestExecute_ProbeAfterCooldownClosesOnSuccess(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))

	trip(t, b, 1)
	clock.Advance(61 * time.Second)

	require.NoError(t, b.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_ProbeFailureReopensAndRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))

	trip(t, b, 1)
	clock.Advance(61 * time.Second)
	trip(t, b, 1)
	require.Equal(t, StateOpen, b.State())

	// Cooldown restarted at the probe failure, so a call right after is rejected.
	err := b.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrOpen)

	clock.Advance(61 * time.Second)
	require.NoError(t, b.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_SingleProbeConcurrentCallersRejected(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))

	trip(t, b, 1)
	clock.Advance(61 * time.Second)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	probeDone := make(chan error, 1)

	go func() {
		probeDone <- b.Execute(context.Background(), func(context.Context) error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	// The probe is in flight; a second caller must fail fast, not queue.
	err := b.Execute(context.Background(), succeeding)
	assert.ErrorIs(t, err, ErrOpen)

	close(release)
	require.NoError(t, <-probeDone)
	assert.Equal(t, StateClosed, b.State())
}

func TestExecute_ClassifierExcludesNonProviderErrors(t *testing.T) {
	local := errors.New("local backpressure")
	b := New("test",
		WithFailureThreshold(1),
		WithFailureClassifier(func(err error) bool { return !errors.Is(err, local) }),
	)

	for j := 0; j < 5; j++ {
		err := b.Execute(context.Background(), func(context.Context) error { return local })
		require.ErrorIs(t, err, local)
	}
	assert.Equal(t, StateClosed, b.State())

	trip(t, b, 1)
	assert.Equal(t, StateOpen, b.State())
}

func TestExecute_StateChangeCallbackFires(t *testing.T) {
	clock := newFakeClock()
	var transitions []State
	b := New("test",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(clock.Now),
		WithStateChange(func(s State) { transitions = append(transitions, s) }),
	)

	trip(t, b, 1)
	clock.Advance(61 * time.Second)
	require.NoError(t, b.Execute(context.Background(), succeeding))

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestReset_ReturnsToClosed(t *testing.T) {
	b := New("test", WithFailureThreshold(1))

	trip(t, b, 1)
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Execute(context.Background(), succeeding))
}
