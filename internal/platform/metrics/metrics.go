package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsReused  prometheus.Counter

	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	ProviderBlocked prometheus.Counter

	BreakerState       prometheus.Gauge
	BreakerRejections  prometheus.Counter
	QueueDepth         prometheus.Gauge
	QueueRejections    *prometheus.CounterVec
	RateLimitRejected  *prometheus.CounterVec
	CartReconciliation *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labgate_login_attempts_total",
			Help: "Total login attempts, labeled by outcome (refreshed_session, fresh_thyrocare, blocked, failed)",
		}, []string{"outcome"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "labgate_active_sessions",
			Help: "Current number of active provider sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labgate_sessions_created_total",
			Help: "Total provider sessions created via fresh login",
		}),
		SessionsReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labgate_sessions_reused_total",
			Help: "Total logins served from a cached session",
		}),
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labgate_provider_calls_total",
			Help: "Total provider calls, labeled by endpoint and status",
		}, []string{"endpoint", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labgate_provider_latency_seconds",
			Help:    "Latency of provider calls in seconds, labeled by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ProviderBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labgate_provider_blocked_total",
			Help: "Total logins rejected by the provider's abuse detector",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "labgate_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labgate_breaker_rejections_total",
			Help: "Total calls rejected by the open circuit breaker",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "labgate_queue_depth",
			Help: "Current number of queued provider tasks",
		}),
		QueueRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labgate_queue_rejections_total",
			Help: "Total queue rejections, labeled by reason (full, timeout)",
		}, []string{"reason"}),
		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labgate_ratelimit_rejected_total",
			Help: "Total requests rejected by the login throttle, labeled by scope (ip, global)",
		}, []string{"scope"}),
		CartReconciliation: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labgate_cart_reconciliations_total",
			Help: "Total cart price reconciliations, labeled by outcome (validated, adjusted, fallback)",
		}, []string{"outcome"}),
	}
}
