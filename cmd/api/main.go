package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/fieldservice-api/config"
	auditHandler "github.com/jwalitptl/fieldservice-api/internal/handler/audit"
	authHandler "github.com/jwalitptl/fieldservice-api/internal/handler/auth"
	categoryHandler "github.com/jwalitptl/fieldservice-api/internal/handler/category"
	clientHandler "github.com/jwalitptl/fieldservice-api/internal/handler/client"
	"github.com/jwalitptl/fieldservice-api/internal/handler/health"
	paymentHandler "github.com/jwalitptl/fieldservice-api/internal/handler/payment"
	promHandler "github.com/jwalitptl/fieldservice-api/internal/handler/prometheus"
	reportHandler "github.com/jwalitptl/fieldservice-api/internal/handler/report"
	statsHandler "github.com/jwalitptl/fieldservice-api/internal/handler/stats"
	ticketHandler "github.com/jwalitptl/fieldservice-api/internal/handler/ticket"
	userHandler "github.com/jwalitptl/fieldservice-api/internal/handler/user"
	"github.com/jwalitptl/fieldservice-api/internal/handler/ws"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
	"github.com/jwalitptl/fieldservice-api/internal/router"
	auditService "github.com/jwalitptl/fieldservice-api/internal/service/audit"
	authService "github.com/jwalitptl/fieldservice-api/internal/service/auth"
	categoryService "github.com/jwalitptl/fieldservice-api/internal/service/category"
	clientService "github.com/jwalitptl/fieldservice-api/internal/service/client"
	eventService "github.com/jwalitptl/fieldservice-api/internal/service/event"
	notificationService "github.com/jwalitptl/fieldservice-api/internal/service/notification"
	paymentService "github.com/jwalitptl/fieldservice-api/internal/service/payment"
	reportService "github.com/jwalitptl/fieldservice-api/internal/service/report"
	statsService "github.com/jwalitptl/fieldservice-api/internal/service/stats"
	ticketService "github.com/jwalitptl/fieldservice-api/internal/service/ticket"
	userService "github.com/jwalitptl/fieldservice-api/internal/service/user"
	"github.com/jwalitptl/fieldservice-api/pkg/auth"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
	"github.com/jwalitptl/fieldservice-api/pkg/mail"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging/redis"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
	"github.com/jwalitptl/fieldservice-api/pkg/websocket"
	"github.com/jwalitptl/fieldservice-api/pkg/worker"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.SetGlobal(appLogger)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database.ToPoolConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		version, err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Uint("version", version).Msg("database schema up to date")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg, cfg.Metrics.Prefix, "")

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	tx := postgres.NewTransactor(db)
	userRepo := postgres.NewUserRepository(base)
	clientRepo := postgres.NewClientRepository(base)
	categoryRepo := postgres.NewCategoryRepository(base)
	serviceRepo := postgres.NewServiceRepository(base)
	reportRepo := postgres.NewReportRepository(base)
	paymentRepo := postgres.NewPaymentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	// Initialize services
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.ToAuthConfig())
	auditSvc := auditService.NewService(auditRepo)
	eventSvc := eventService.NewService(outboxRepo)
	notifier := notificationService.NewService(userRepo, mail.NewSender(cfg.SMTP.ToMailConfig()), appMetrics)

	authSvc := authService.NewService(userRepo, jwtSvc, hasher, auditSvc, cfg.Cache.UserTTL)
	userSvc := userService.NewService(userRepo, hasher, auditSvc, authSvc)
	clientSvc := clientService.NewService(clientRepo, auditSvc)
	categorySvc := categoryService.NewService(categoryRepo, auditSvc, cfg.Cache.CategoryTTL, cfg.Cache.CleanupInterval)
	reportSvc := reportService.NewService(tx, serviceRepo, reportRepo, eventSvc, auditSvc)
	paymentSvc := paymentService.NewService(tx, serviceRepo, reportRepo, paymentRepo, eventSvc, auditSvc)
	ticketSvc := ticketService.NewService(
		ticketService.Repositories{
			Tx:         tx,
			Services:   serviceRepo,
			Users:      userRepo,
			Clients:    clientRepo,
			Categories: categoryRepo,
			Payments:   paymentRepo,
		},
		reportSvc,
		paymentSvc,
		eventSvc,
		auditSvc,
		notifier,
	)
	statsSvc := statsService.NewService(serviceRepo, paymentRepo)

	// Live feed: broker messages fan out to websocket clients
	broker := newBroker(cfg, appLogger, appMetrics)
	defer broker.Close()

	hub := websocket.NewHub(appLogger.Zerolog(), appMetrics)
	go hub.Run(ctx)

	if err := messaging.Consume(ctx, broker, cfg.Redis.EventsChannel, hub.Publish, func(err error) {
		log.Warn().Err(err).Msg("failed to forward event to live feed")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to events")
	}

	// Without Redis the broker only lives in this process, so relay the outbox here too
	if _, ok := broker.(*messaging.MemoryBroker); ok {
		processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Redis.EventsChannel,
			cfg.Outbox.ToWorkerConfig(), appLogger, appMetrics)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create outbox processor")
		}
		go processor.Start(ctx)
	}

	// Setup router
	var metricsHandler *promHandler.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promHandler.New(reg, cfg.Metrics.Prefix+"_http")
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		router.Handlers{
			Auth:       authHandler.NewHandler(authSvc),
			Health:     health.NewHandler(db),
			Metrics:    metricsHandler,
			WS:         ws.NewHandler(authSvc, hub),
			Users:      userHandler.NewHandler(userSvc),
			Clients:    clientHandler.NewHandler(clientSvc),
			Categories: categoryHandler.NewHandler(categorySvc),
			Services:   ticketHandler.NewHandler(ticketSvc),
			Reports:    reportHandler.NewHandler(reportSvc),
			Payments:   paymentHandler.NewHandler(paymentSvc),
			Stats:      statsHandler.NewHandler(statsSvc),
			Audit:      auditHandler.NewHandler(auditSvc),
		},
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       corsConfig(cfg.CORS),
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
			RequestTimeout:   cfg.Server.RequestTimeout,
		},
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func newBroker(cfg *config.Config, appLogger *logger.Logger, m *metrics.Metrics) messaging.Broker {
	if cfg.Redis.URL == "" {
		log.Warn().Msg("redis url not set, using in-process broker")
		return messaging.NewMemoryBroker()
	}

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog(), m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	return broker
}

func corsConfig(c config.CORSConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(c.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.AllowedOrigins
	}
	if len(c.AllowedMethods) > 0 {
		cors.AllowMethods = c.AllowedMethods
	}
	if len(c.AllowedHeaders) > 0 {
		cors.AllowHeaders = c.AllowedHeaders
	}
	return cors
}
