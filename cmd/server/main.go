package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contactlink/internal/audit"
	"contactlink/internal/fingerprint"
	identityhandler "contactlink/internal/identity/handler"
	identitymetrics "contactlink/internal/identity/metrics"
	identityservice "contactlink/internal/identity/service"
	contactstore "contactlink/internal/identity/store/contact"
	"contactlink/internal/platform/config"
	"contactlink/internal/platform/httpserver"
	"contactlink/internal/platform/logger"
	platformmetrics "contactlink/internal/platform/metrics"
	"contactlink/internal/platform/postgres"
	platformredis "contactlink/internal/platform/redis"
	"contactlink/internal/transport/http/shared"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Contact store: Postgres when configured, in-memory otherwise.
	var contacts identityservice.ContactStore
	healthChecks := map[string]func(context.Context) error{}
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		contacts = contactstore.NewPostgres(db)
		healthChecks["postgres"] = db.PingContext
		log.Info("using postgres contact store")
	} else {
		contacts = contactstore.NewInMemory()
		log.Warn("no postgres configured, using in-memory contact store")
	}

	// Fingerprint provider behind a circuit breaker, optionally fronted by
	// a Redis resolution cache. The cache sits outermost so hits are served
	// even while the circuit is open.
	var provider fingerprint.Provider = fingerprint.NewClient(
		cfg.FingerprintAPIKey,
		fingerprint.Region(cfg.FingerprintRegion),
		fingerprint.WithBaseURL(cfg.FingerprintBaseURL),
	)
	provider = fingerprint.NewBreakerProvider(provider, cfg.FingerprintBreakerThreshold, cfg.FingerprintBreakerCooldown)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		provider = fingerprint.NewCachedProvider(provider, redisClient.Client, cfg.FingerprintCacheTTL, log)
		healthChecks["redis"] = redisClient.Health
		log.Info("fingerprint resolution cache enabled")
	}

	// Audit pipeline: Kafka sink when brokers are configured, in-memory
	// store otherwise. The worker drains the publisher inbox until shutdown.
	var auditStore audit.Store = audit.NewInMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		log.Info("audit events publishing to kafka", "topic", cfg.KafkaTopic)
	}
	publisher := audit.NewPublisher(0, log)
	worker := audit.NewWorker(auditStore, publisher.Inbox(), log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err.Error())
		}
	}()

	identitySvc := identityservice.New(contacts, provider,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithMetrics(identitymetrics.New()),
	)

	httpMetrics := platformmetrics.New()
	router := chi.NewRouter()
	identityhandler.New(identitySvc, log, httpMetrics, cfg.APIKeyHash, cfg.RequestTimeout).Register(router)
	router.Get("/healthz", healthHandler(healthChecks))
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting contactlink", "addr", cfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// healthHandler reports the liveness of the configured backing services.
func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		shared.WriteJSON(w, status, result)
	}
}
