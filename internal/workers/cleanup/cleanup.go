// Package cleanup runs the periodic session sweeper. Sessions are never
// deleted; expired ones are deactivated so the audit trail stays intact.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"labgate/internal/audit"
	"labgate/internal/platform/metrics"
	sessionstore "labgate/internal/session/store"
)

const defaultInterval = 15 * time.Minute

// AuditPublisher records sweep outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Worker periodically deactivates expired sessions.
type Worker struct {
	sessions sessionstore.Store
	interval time.Duration
	logger   *slog.Logger
	audit    AuditPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the Worker.
type Option func(*Worker)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(w *Worker) {
		w.audit = publisher
	}
}

// WithMetrics enables sweep metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New constructs the sweeper.
func New(sessions sessionstore.Store, opts ...Option) (*Worker, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	w := &Worker{
		sessions: sessions,
		interval: defaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep deactivates every session expired as of now and returns the count.
func (w *Worker) Sweep(ctx context.Context) int {
	swept, err := w.sessions.DeactivateExpired(ctx, w.now())
	if err != nil {
		w.logger.ErrorContext(ctx, "session sweep failed", "error", err)
		return 0
	}
	if swept == 0 {
		return 0
	}
	if w.metrics != nil {
		w.metrics.ActiveSessions.Sub(float64(swept))
	}
	if w.audit != nil {
		_ = w.audit.Emit(ctx, audit.Event{
			Action:  audit.ActionSessionSwept,
			Outcome: "success",
			Detail:  "expired sessions deactivated",
		})
	}
	w.logger.InfoContext(ctx, "expired sessions deactivated", "count", swept)
	return swept
}
