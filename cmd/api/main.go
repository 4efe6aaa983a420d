package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/database"
	"github.com/noah-isme/gema-progress-api/internal/events"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/health"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/models"
	"github.com/noah-isme/gema-progress-api/internal/repository"
	"github.com/noah-isme/gema-progress-api/internal/router"
	"github.com/noah-isme/gema-progress-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	startCtx := context.Background()

	db, err := database.ConnectPostgres(startCtx, cfg.DatabaseURL, cfg.StoreTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Teacher{},
		&models.Subject{},
		&models.Class{},
		&models.Report{},
		&models.ReportStatusHistory{},
		&models.AuditEntry{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(startCtx, cfg.RedisURL, cfg.StoreTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, report events go to redis only")
		} else {
			defer natsConn.Drain()
		}
	}

	registry := health.NewRegistry(cfg.HealthTimeout)
	registry.Register("database", health.Database(db))
	registry.Register("redis", health.Redis(redisClient))
	if natsConn != nil {
		registry.Register("nats", health.NATS(natsConn))
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	publisher := events.NewBrokerPublisher(redisClient, natsConn, cfg.EventChannel, logger)

	reportRepo := repository.NewReportRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	guard := service.NewSubmissionGuard(reportRepo, validate)
	serviceCfg := service.ReportServiceConfig{StoreTimeout: cfg.StoreTimeout}
	reportService := service.NewReportService(reportRepo, guard, validate, auditService, publisher, serviceCfg, logger)
	bulkService := service.NewReportBulkService(reportService, studentRepo, service.ReportBulkConfig{
		BatchSize:    cfg.BulkBatchSize,
		StoreTimeout: cfg.StoreTimeout,
	}, logger)
	reviewService := service.NewReportReviewService(reportRepo, validate, auditService, publisher, serviceCfg, logger)
	statsService := service.NewReportStatsService(reportRepo, redisClient, cfg.StatsCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ReportHandler:      handler.NewReportHandler(reportService, bulkService, logger),
		AdminReportHandler: handler.NewAdminReportHandler(reportService, reviewService, statsService, logger),
		AdminAuditHandler:  handler.NewAdminAuditHandler(auditService, logger),
		Health:             registry,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		BulkLimiter:        middleware.RateLimit("reports-bulk", cfg.BulkRateLimit, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cfg.ShutdownTimeout, logger)
}

func waitForShutdown(app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
