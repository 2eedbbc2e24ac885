package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/fieldservice-api/config"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
	retention "github.com/jwalitptl/fieldservice-api/internal/worker"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging/redis"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
	"github.com/jwalitptl/fieldservice-api/pkg/worker"
)

func setupHealthCheck(port int, db *sqlx.DB, reg *prometheus.Registry, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	_ = godotenv.Load()

	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	appLogger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.SetGlobal(appLogger)
	workerLogger := appLogger.WithFields(map[string]interface{}{"worker_id": workerID()})

	// Initialize database
	db, err := postgres.NewDB(cfg.Database.ToPoolConfig())
	if err != nil {
		workerLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	workerMetrics := metrics.NewMetrics(reg, cfg.Metrics.Prefix, "worker")

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), workerLogger.Zerolog(), workerMetrics)
	if err != nil {
		workerLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	// Initialize outbox processor and retention worker
	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Redis.EventsChannel,
		cfg.Outbox.ToWorkerConfig(),
		workerLogger,
		workerMetrics,
	)
	if err != nil {
		workerLogger.Fatal(err, "Invalid outbox processor config")
	}

	cleaner := retention.NewRetentionWorker(
		outboxRepo,
		auditRepo,
		cfg.Outbox.Retention,
		cfg.Audit.RetentionDays,
		cfg.Audit.CleanupInterval,
		workerLogger,
	)

	// Setup health check endpoints
	health := setupHealthCheck(cfg.Worker.HealthPort, db, reg, workerLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		workerLogger.Info("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleaner.Start(ctx)
	}()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		workerLogger.Error(err, "Health check server shutdown failed")
	}
}

func workerID() string {
	// Unique per process: hostname and start time
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
