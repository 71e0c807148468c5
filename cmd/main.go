package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shenikar/accident_dispatch_system/internal/channel"
	"github.com/shenikar/accident_dispatch_system/internal/config"
	"github.com/shenikar/accident_dispatch_system/internal/dispatch"
	"github.com/shenikar/accident_dispatch_system/internal/geo"
	v1 "github.com/shenikar/accident_dispatch_system/internal/handler/http/v1"
	"github.com/shenikar/accident_dispatch_system/internal/notify"
	"github.com/shenikar/accident_dispatch_system/internal/realtime"
	"github.com/shenikar/accident_dispatch_system/internal/repository"
	"github.com/shenikar/accident_dispatch_system/internal/service"
	"github.com/shenikar/accident_dispatch_system/internal/webhook"
	"github.com/shenikar/accident_dispatch_system/pkg/logger"
	"github.com/shenikar/accident_dispatch_system/pkg/postgres"
	redisclient "github.com/shenikar/accident_dispatch_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/accident_dispatch_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Accident Dispatch System API
// @version 1.0
// @description Incident verification and responder dispatch API server.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// newSender выбирает провайдера WhatsApp: Twilio при заданных учетных данных, иначе dry-run
func newSender(cfg *config.Config, log *logrus.Logger) channel.Sender {
	if cfg.MessagingEnabled() {
		log.Info("WhatsApp messaging via Twilio enabled")
		return channel.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	}
	log.Warn("Twilio credentials are not configured, using dry-run messaging provider")
	return channel.NewDryRunSender(log)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Вебхуки с отчетами диспетчеризации
	webhookPublisher := webhook.NewRedisWebhookPublisher(redisClient)
	webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
	webhookWorker.Start(ctx)

	// Realtime хаб для клиентов служб
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not configured, realtime connections will be rejected")
	}
	hub := realtime.NewHub(realtime.NewAuthenticator(cfg.JWTSecret), cfg.RealtimeQueueSize, log)
	hub.Start(ctx)

	// Трубопровод диспетчеризации
	timezone, err := time.LoadLocation(cfg.MessageTimezone)
	if err != nil {
		log.Fatalf("Failed to load message timezone: %v", err)
	}
	responderRepo := repository.NewResponderRepository(dbpool)
	locator := geo.NewLocator(responderRepo, cfg.DispatchCategoryLimit, log)
	messaging := channel.NewMessagingChannel(newSender(cfg, log), channel.MessagingOptions{
		CountryCode:   cfg.MessagingCountryCode,
		MaxAttempts:   cfg.MessagingMaxAttempts,
		BaseDelay:     cfg.MessagingBaseDelay,
		RatePerSecond: cfg.MessagingRatePerSecond,
		Burst:         cfg.MessagingBurst,
	}, log)
	orchestrator := dispatch.NewOrchestrator(locator, notify.NewComposer(timezone), messaging, hub, dispatch.Options{
		RadiusMeters: cfg.DispatchRadiusMeters,
		Concurrency:  cfg.DispatchConcurrency,
	}, log)

	reportLog := dispatch.NewReportLog(cfg.DispatchReportTTL)
	promRecorder, err := dispatch.NewPromRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("Failed to register dispatch metrics: %v", err)
	}
	recorders := dispatch.MultiRecorder{reportLog, promRecorder}
	if cfg.WebhookURL != "" {
		recorders = append(recorders, dispatch.NewPublishingRecorder(webhookPublisher, log))
	}
	supervisor := dispatch.NewSupervisor(orchestrator, recorders, cfg.DispatchTimeout, log)

	// Инициализация репозиториев и сервисов
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient, cfg.IncidentCacheTTL)
	incidentService := service.NewIncidentService(incidentRepo, supervisor, reportLog, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	api.GET("/realtime/ws", gin.WrapH(hub))

	// Метрики и Swagger UI
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DispatchTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	// Текущие запуски диспетчеризации дописывают отчеты до остановки Redis и хаба
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Dispatch runs were cancelled on shutdown")
	}
	hub.Shutdown()

	cancel()
	webhookWorker.Wait()

	log.Info("Server gracefully stopped")
}
