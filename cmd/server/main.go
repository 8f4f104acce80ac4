package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	postgresRepo "github.com/corebank/ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/corebank/ledger/internal/adapter/repository/redis"
	"github.com/corebank/ledger/internal/infrastructure/config"
	"github.com/corebank/ledger/internal/infrastructure/eventpublisher"
	"github.com/corebank/ledger/internal/infrastructure/logger"
	"github.com/corebank/ledger/internal/infrastructure/metrics"
	"github.com/corebank/ledger/internal/infrastructure/postgres"
	"github.com/corebank/ledger/internal/infrastructure/redis"
	"github.com/corebank/ledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
		return err
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
		ConnTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	auditUC := usecase.NewAuditUseCase(txManager, auditRepo, idGen, m)
	reconciliationUC := usecase.NewReconciliationUseCase(accountRepo, journalRepo, cache)

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(log),
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})
	go func() {
		if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	go purgeIdempotencyKeys(ctx, txnRepo, cfg.IdempotencyTTL, log)
	go reportPoolStats(ctx, pool, m)

	server := &http.Server{
		Addr:         ":" + cfg.OpsPort,
		Handler:      opsRouter(pool, redisClient, registry, reconciliationUC, auditUC),
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.OpsPort).Msg("starting ops server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

// opsRouter serves health, readiness, metrics and the consistency probe.
// Money movement has no HTTP surface here; callers integrate through the
// usecase layer.
func opsRouter(pool *pgxpool.Pool, redisClient *goredis.Client, registry *prometheus.Registry, recon *usecase.ReconciliationUseCase, audit *usecase.AuditUseCase) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/ledger/consistency", func(w http.ResponseWriter, req *http.Request) {
		if err := recon.CheckLedgerConsistency(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("consistent"))
	})

	r.Get("/audit/verify", func(w http.ResponseWriter, req *http.Request) {
		result, err := audit.VerifyIntegrity(req.Context(), 0, 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !result.Valid {
			http.Error(w, "audit chain broken at "+result.BrokenAt, http.StatusConflict)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("valid"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

// reportPoolStats keeps the connection gauge in step with the pgx pool.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(pool.Stat().TotalConns()))
		}
	}
}

// purgeIdempotencyKeys clears expired idempotency keys on an hourly cadence.
// Transaction rows are kept, only the key column is released for reuse.
func purgeIdempotencyKeys(ctx context.Context, txnRepo *postgresRepo.TransactionRepository, ttl time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-ttl)
			purged, err := txnRepo.PurgeIdempotencyKeys(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("failed to purge idempotency keys")
				continue
			}
			if purged > 0 {
				log.Info().Int64("purged", purged).Msg("purged expired idempotency keys")
			}
		}
	}
}
