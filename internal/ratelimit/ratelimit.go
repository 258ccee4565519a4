// Package ratelimit throttles the login path before anything reaches the
// circuit breaker or request queue. Excess traffic is rejected here so the
// provider's abuse detector never sees it.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports a limiter decision with standard rate-limit metadata.
type Result struct {
	Allowed    bool
	Scope      string // "ip" or "global"
	Limit      int
	Remaining  int
	RetryAfter int // seconds until retry is allowed; 0 when allowed
}

// slidingWindow tracks request timestamps inside a rolling window.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) tryConsume(limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.cleanupExpired(now)
	if len(sw.timestamps)+1 > limit {
		// With a zero limit the window can be empty on rejection.
		resetAt = now.Add(sw.window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(sw.window)
		}
		return false, 0, resetAt
	}
	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Limiter applies a per-IP and a global sliding-window limit. The global
// window backstops distributed sources that rotate IPs.
type Limiter struct {
	mu       sync.Mutex
	perIP    map[string]*slidingWindow
	global   *slidingWindow
	ipLimit  int
	ipWindow time.Duration
	gLimit   int
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a Limiter with the given per-IP and global windows.
func New(ipLimit int, ipWindow time.Duration, globalLimit int, globalWindow time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		perIP:    make(map[string]*slidingWindow),
		global:   &slidingWindow{window: globalWindow},
		ipLimit:  ipLimit,
		ipWindow: ipWindow,
		gLimit:   globalLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one slot for the given IP. The global window is consulted
// first; a globally blocked request does not consume per-IP capacity.
func (l *Limiter) Check(_ context.Context, ip string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	if allowed, remaining, resetAt := l.global.tryConsume(l.gLimit, now); !allowed {
		return Result{Scope: "global", Limit: l.gLimit, Remaining: remaining, RetryAfter: retryAfterSeconds(resetAt, now)}
	}

	sw, ok := l.perIP[ip]
	if !ok {
		sw = &slidingWindow{window: l.ipWindow}
		l.perIP[ip] = sw
	}
	allowed, remaining, resetAt := sw.tryConsume(l.ipLimit, now)
	if !allowed {
		return Result{Scope: "ip", Limit: l.ipLimit, Remaining: remaining, RetryAfter: retryAfterSeconds(resetAt, now)}
	}
	return Result{Allowed: true, Scope: "ip", Limit: l.ipLimit, Remaining: remaining}
}

// Sweep drops idle per-IP windows. Run periodically to bound memory.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, sw := range l.perIP {
		sw.cleanupExpired(now)
		if len(sw.timestamps) == 0 {
			delete(l.perIP, ip)
		}
	}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
