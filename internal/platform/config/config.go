package config

import (
	"os"
	"strconv"
	"time"
)

// Provider captures connectivity settings for the upstream lab provider.
type Provider struct {
	BaseURL     string
	PortalType  string
	UserType    string
	CallTimeout time.Duration
}

// Breaker captures circuit breaker tuning for provider calls.
type Breaker struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Queue captures request queue tuning. Login safety requires Concurrency = 1
// so the provider never observes two simultaneous calls from this process.
type Queue struct {
	Concurrency int
	MaxDepth    int
	TaskTimeout time.Duration
}

// RateLimit captures the login-path throttle in front of the queue.
type RateLimit struct {
	PerIPLimit   int
	PerIPWindow  time.Duration
	GlobalLimit  int
	GlobalWindow time.Duration
}

// Server is the top-level configuration assembled from the environment.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	Provider  Provider
	Breaker   Breaker
	Queue     Queue
	RateLimit RateLimit

	SessionTTL      time.Duration
	CleanupInterval time.Duration

	// Optional backing services. Empty values select in-memory stores.
	PostgresURL  string
	RedisAddr    string
	KafkaBrokers string
	AuditTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envString("LABGATE_ADDR", ":8080"),
		JWTSigningKey: envString("LABGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:      envDuration("LABGATE_TOKEN_TTL", 12*time.Hour),
		Provider: Provider{
			BaseURL:     envString("PROVIDER_BASE_URL", "https://velso.thyrocare.cloud"),
			PortalType:  envString("PROVIDER_PORTAL_TYPE", "DSA"),
			UserType:    envString("PROVIDER_USER_TYPE", "DSA"),
			CallTimeout: envDuration("PROVIDER_CALL_TIMEOUT", 30*time.Second),
		},
		Breaker: Breaker{
			FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
			Cooldown:         envDuration("BREAKER_COOLDOWN", 60*time.Second),
		},
		Queue: Queue{
			Concurrency: envInt("QUEUE_CONCURRENCY", 1),
			MaxDepth:    envInt("QUEUE_MAX_DEPTH", 50),
			TaskTimeout: envDuration("QUEUE_TASK_TIMEOUT", 45*time.Second),
		},
		RateLimit: RateLimit{
			PerIPLimit:   envInt("RATELIMIT_PER_IP", 10),
			PerIPWindow:  envDuration("RATELIMIT_PER_IP_WINDOW", time.Minute),
			GlobalLimit:  envInt("RATELIMIT_GLOBAL", 100),
			GlobalWindow: envDuration("RATELIMIT_GLOBAL_WINDOW", time.Minute),
		},
		SessionTTL:      envDuration("SESSION_TTL", 24*time.Hour),
		CleanupInterval: envDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),
		PostgresURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		AuditTopic:      envString("AUDIT_TOPIC", "labgate.audit"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
