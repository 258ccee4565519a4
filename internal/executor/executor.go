// Package executor attaches an active session's API key to provider calls
// and routes every call through the process-wide circuit breaker and request
// queue. It never performs a login; only the login orchestrator creates
// sessions.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"labgate/internal/platform/metrics"
	"labgate/internal/provider"
	sessionstore "labgate/internal/session/store"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
	"labgate/pkg/platform/circuit"
	"labgate/pkg/platform/queue"
)

// Executor resolves the caller's usable session and dispatches provider
// calls with limited retry for idempotent reads.
type Executor struct {
	sessions sessionstore.Store
	breaker  *circuit.Breaker
	queue    *queue.Queue
	client   provider.API
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics enables provider-call metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Executor over the shared breaker and queue instances.
func New(
	sessions sessionstore.Store,
	breaker *circuit.Breaker,
	q *queue.Queue,
	client provider.API,
	opts ...Option,
) (*Executor, error) {
	if sessions == nil || breaker == nil || q == nil || client == nil {
		return nil, errors.New("sessions, breaker, queue, and client are required")
	}
	e := &Executor{
		sessions: sessions,
		breaker:  breaker,
		queue:    q,
		client:   client,
		logger:   slog.Default(),
		tracer:   otel.Tracer("labgate/provider"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// resolveSession returns the caller's active, unexpired session for its IP,
// or an auth_expired error the transport maps to "log in again".
func (e *Executor) resolveSession(ctx context.Context, adminID id.AdminID, ip string) (*provider.Credentials, error) {
	sess, err := e.sessions.FindUsableByAdminIP(ctx, adminID, ip, e.now())
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.New(dErrors.CodeAuthExpired, "no usable provider session; log in again")
	}
	if err != nil {
		return nil, err
	}
	return &provider.Credentials{APIKey: sess.APIKey, AccessToken: sess.AccessToken}, nil
}

// execute runs one provider call through breaker and queue, recording a span
// and metrics per attempt. Idempotent reads get at most one retry on
// transient transport errors; validation-class responses are never retried.
func (e *Executor) execute(ctx context.Context, endpoint string, pri queue.Priority, idempotent bool, call func(context.Context) error) error {
	attempts := 1
	if idempotent {
		attempts = 2
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = e.attempt(ctx, endpoint, pri, attempt, call)
		if err == nil || !provider.IsRetryable(err) {
			return e.translate(err)
		}
		if attempt < attempts {
			e.logger.WarnContext(ctx, "retrying provider call",
				"endpoint", endpoint,
				"error", err,
			)
		}
	}
	return e.translate(err)
}

func (e *Executor) attempt(ctx context.Context, endpoint string, pri queue.Priority, attempt int, call func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "provider"+endpoint,
		trace.WithAttributes(
			attribute.String("provider.endpoint", endpoint),
			attribute.Int("provider.attempt", attempt),
		))
	start := e.now()

	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		return e.queue.Enqueue(ctx, call, queue.Options{
			Priority: pri,
			Name:     endpoint,
		})
	})

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = string(dErrors.CodeOf(e.translate(err)))
		}
		e.metrics.ProviderCalls.WithLabelValues(endpoint, status).Inc()
		e.metrics.ProviderLatency.WithLabelValues(endpoint).Observe(e.now().Sub(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

// translate maps breaker and queue sentinels onto domain codes so transports
// see one error taxonomy.
func (e *Executor) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, circuit.ErrOpen):
		if e.metrics != nil {
			e.metrics.BreakerRejections.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeCircuitOpen, "provider calls suspended; retry later")
	case errors.Is(err, queue.ErrFull):
		return dErrors.Wrap(err, dErrors.CodeQueueFull, "provider queue at capacity; retry later")
	case errors.Is(err, queue.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "provider call timed out in queue")
	case errors.Is(err, queue.ErrClosed):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "gateway shutting down")
	default:
		return err
	}
}

// Login dispatches a fresh provider login. Exposed for the login
// orchestrator only; it carries no session resolution.
func (e *Executor) Login(ctx context.Context, req provider.LoginRequest) (*provider.LoginResponse, error) {
	var resp *provider.LoginResponse
	err := e.execute(ctx, provider.EndpointLogin, queue.PriorityNormal, false, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.Login(ctx, req)
		return callErr
	})
	return resp, err
}

// Products fetches the product master on behalf of an authenticated admin.
func (e *Executor) Products(ctx context.Context, adminID id.AdminID, ip, productType string) (*provider.ProductsResponse, error) {
	creds, err := e.resolveSession(ctx, adminID, ip)
	if err != nil {
		return nil, err
	}
	var resp *provider.ProductsResponse
	err = e.execute(ctx, provider.EndpointProducts, queue.PriorityHigh, true, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.Products(ctx, creds.APIKey, productType)
		return callErr
	})
	return resp, err
}

// PincodeAvailability checks serviceability for a pincode.
func (e *Executor) PincodeAvailability(ctx context.Context, adminID id.AdminID, ip, pincode string) (*provider.PincodeResponse, error) {
	creds, err := e.resolveSession(ctx, adminID, ip)
	if err != nil {
		return nil, err
	}
	var resp *provider.PincodeResponse
	err = e.execute(ctx, provider.EndpointPincode, queue.PriorityHigh, true, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.PincodeAvailability(ctx, creds.APIKey, pincode)
		return callErr
	})
	return resp, err
}

// AppointmentSlots lists collection slots for a pincode and date.
func (e *Executor) AppointmentSlots(ctx context.Context, adminID id.AdminID, ip string, req provider.SlotsRequest) (*provider.SlotsResponse, error) {
	creds, err := e.resolveSession(ctx, adminID, ip)
	if err != nil {
		return nil, err
	}
	req.APIKey = creds.APIKey
	var resp *provider.SlotsResponse
	err = e.execute(ctx, provider.EndpointSlots, queue.PriorityHigh, true, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.AppointmentSlots(ctx, req)
		return callErr
	})
	return resp, err
}

// CartPricing validates a cart against the provider's authoritative prices.
// The pricing endpoint recomputes the same result for the same cart, so it
// is treated as an idempotent read.
func (e *Executor) CartPricing(ctx context.Context, adminID id.AdminID, ip string, req provider.CartPricingRequest) (*provider.CartPricingResponse, error) {
	creds, err := e.resolveSession(ctx, adminID, ip)
	if err != nil {
		return nil, err
	}
	req.APIKey = creds.APIKey
	var resp *provider.CartPricingResponse
	err = e.execute(ctx, provider.EndpointCart, queue.PriorityHigh, true, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.CartPricing(ctx, req)
		return callErr
	})
	return resp, err
}
