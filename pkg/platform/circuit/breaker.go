// Package circuit provides a three-state circuit breaker for calls to the
// upstream lab provider.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit rejects a call without invoking the
// protected function. Callers translate it to a retry-later response.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and requests flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped; calls fail fast until the
	// cooldown elapses.
	StateOpen
	// StateHalfOpen means the cooldown elapsed and a single probe call is
	// allowed through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// Breaker tracks consecutive failures for a protected operation. After
// FailureThreshold consecutive failures the circuit opens. Once the cooldown
// elapses, exactly one caller runs a probe in half-open state: if the probe
// succeeds the circuit closes, otherwise it reopens and the cooldown restarts.
type Breaker struct {
	mu            sync.Mutex
	state         State
	name          string
	failureCount  int
	threshold     int
	cooldown      time.Duration
	openedAt      time.Time
	probeInFlight bool
	now           func() time.Time
	onStateChange func(State)
	countsAsFail  func(error) bool
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before allowing a probe.
// Default is 60s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithStateChange registers a callback invoked (outside fn, inside the lock)
// on every state transition. Used to keep a metrics gauge current.
func WithStateChange(fn func(State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// WithFailureClassifier restricts which errors count toward the failure
// threshold. Unclassified errors still propagate to the caller but leave the
// breaker state untouched. Default: every non-nil error counts.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.countsAsFail = fn
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:         name,
		state:        StateClosed,
		threshold:    5,
		cooldown:     60 * time.Second,
		now:          time.Now,
		countsAsFail: func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn under circuit protection. While open and before the
// cooldown elapses it returns ErrOpen without invoking fn. The first caller
// to observe an elapsed cooldown runs fn as the half-open probe; concurrent
// callers during the probe are rejected, never queued behind it. Errors from
// fn are returned unchanged after state bookkeeping.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn(ctx)
	b.record(probe, callErr)
	return callErr
}

// admit decides whether the caller may proceed, returning whether the call
// is the half-open probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return true, nil
	case StateHalfOpen:
		// A probe is already in flight; reject rather than queue behind it.
		return false, ErrOpen
	}
	return false, ErrOpen
}

// record applies the outcome of a call to the breaker state.
func (b *Breaker) record(probe bool, callErr error) {
	failed := callErr != nil && b.countsAsFail(callErr)

	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probeInFlight = false
		if failed {
			b.openedAt = b.now()
			b.transition(StateOpen)
			return
		}
		b.failureCount = 0
		b.transition(StateClosed)
		return
	}

	if failed {
		b.failureCount++
		if b.state == StateClosed && b.failureCount >= b.threshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}
	b.failureCount = 0
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(to)
	}
}

// Reset returns the breaker to closed state with zero counts. Intended for
// tests and admin tooling.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.probeInFlight = false
	b.transition(StateClosed)
}
