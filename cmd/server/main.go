// Command server runs the lab provider gateway: a single process that owns
// every session, queue slot, and circuit decision for the upstream provider.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"labgate/internal/audit"
	"labgate/internal/cart"
	"labgate/internal/executor"
	"labgate/internal/login"
	loginstore "labgate/internal/login/store"
	"labgate/internal/platform/config"
	"labgate/internal/platform/database"
	"labgate/internal/platform/kafka/producer"
	"labgate/internal/platform/logger"
	"labgate/internal/platform/metrics"
	"labgate/internal/platform/redis"
	"labgate/internal/provider"
	"labgate/internal/ratelimit"
	sessionstore "labgate/internal/session/store"
	httptransport "labgate/internal/transport/http"
	"labgate/internal/workers/cleanup"
	dErrors "labgate/pkg/domain-errors"
	"labgate/pkg/platform/circuit"
	"labgate/pkg/platform/queue"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Optional backing services. An empty setting selects the in-memory
	// equivalent so a dev instance runs with zero infrastructure.
	pool, err := database.New(database.Config{
		URL:             cfg.PostgresURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sessions, admins, err := buildStores(ctx, pool, redisClient)
	if err != nil {
		return err
	}

	auditPub, closeAudit, err := buildAudit(cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	breaker := circuit.New("provider",
		circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		circuit.WithCooldown(cfg.Breaker.Cooldown),
		circuit.WithStateChange(func(s circuit.State) {
			m.BreakerState.Set(float64(s))
			log.Warn("circuit breaker state changed", "state", s.String())
		}),
		circuit.WithFailureClassifier(providerFailure),
	)

	q := queue.New(
		queue.WithConcurrency(cfg.Queue.Concurrency),
		queue.WithMaxDepth(cfg.Queue.MaxDepth),
		queue.WithDefaultTimeout(cfg.Queue.TaskTimeout),
		queue.WithLogger(log),
		queue.WithDepthChanged(func(depth int) {
			m.QueueDepth.Set(float64(depth))
		}),
	)
	defer q.Close()

	client := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.CallTimeout)
	exec, err := executor.New(sessions, breaker, q, client,
		executor.WithLogger(log),
		executor.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(
		cfg.RateLimit.PerIPLimit, cfg.RateLimit.PerIPWindow,
		cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow,
	)

	tokens := login.NewTokenIssuer(cfg.JWTSigningKey, cfg.TokenTTL)
	loginSvc, err := login.New(admins, sessions, exec, tokens,
		login.Config{
			PortalType: cfg.Provider.PortalType,
			UserType:   cfg.Provider.UserType,
			SessionTTL: cfg.SessionTTL,
		},
		login.WithLogger(log),
		login.WithMetrics(m),
		login.WithAuditPublisher(auditPub),
		login.WithRateLimiter(limiter),
	)
	if err != nil {
		return err
	}

	cartSvc, err := cart.New(exec,
		cart.WithLogger(log),
		cart.WithMetrics(m),
		cart.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}

	sweeper, err := cleanup.New(sessions,
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithLogger(log),
		cleanup.WithMetrics(m),
		cleanup.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(loginSvc, cartSvc, exec, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httptransport.NewRouter(handler, log, cfg.Queue.TaskTimeout+15*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Addr, "provider", cfg.Provider.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.RateLimit.PerIPWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStores selects session and admin persistence: Postgres when configured,
// then Redis for sessions, then in-memory.
func buildStores(ctx context.Context, pool *database.Pool, redisClient *redis.Client) (sessionstore.Store, login.AdminStore, error) {
	if pool != nil {
		sessions := sessionstore.NewPostgres(pool.DB())
		if err := sessions.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		admins := loginstore.NewPostgres(pool.DB())
		if err := admins.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return sessions, admins, nil
	}
	if redisClient != nil {
		return sessionstore.NewRedis(redisClient), loginstore.NewInMemory(), nil
	}
	return sessionstore.NewInMemory(), loginstore.NewInMemory(), nil
}

// buildAudit wires the audit publisher: Kafka sink when brokers are
// configured, in-memory otherwise. Always async so the login path never
// blocks on the sink.
func buildAudit(cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	var store audit.Store = audit.NewInMemoryStore()
	closer := func() {}

	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			DeliveryTimeout: 10 * time.Second,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		store = audit.NewKafkaStore(prod, cfg.AuditTopic)
		closer = func() { _ = prod.Close() }
	}

	pub := audit.NewPublisher(store,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	closeAll := func() {
		pub.Close()
		closer()
	}
	return pub, closeAll, nil
}

// providerFailure reports whether an error should count toward opening the
// circuit. Local backpressure and business rejections say nothing about
// provider health; only transport failures and queue timeouts do.
func providerFailure(err error) bool {
	if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
		return false
	}
	if errors.Is(err, queue.ErrTimeout) {
		return true
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeTimeout, dErrors.CodeUnavailable:
		return true
	}
	return false
}
