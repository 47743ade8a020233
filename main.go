package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/learner-service/internal/cache"
	"github.com/SAP-F-2025/learner-service/internal/config"
	"github.com/SAP-F-2025/learner-service/internal/events"
	"github.com/SAP-F-2025/learner-service/internal/handlers"
	"github.com/SAP-F-2025/learner-service/internal/metrics"
	"github.com/SAP-F-2025/learner-service/internal/repositories/mongodb"
	"github.com/SAP-F-2025/learner-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learner-service/internal/services"
	"github.com/SAP-F-2025/learner-service/internal/utils"
	"github.com/SAP-F-2025/learner-service/internal/validator"
	"github.com/SAP-F-2025/learner-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Relational store
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		PingTimeout: cfg.StoreTimeout,
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}

	// Document store
	mongoClient, err := pkg.NewMongoClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	docs := mongodb.NewMongoRepository(mongoClient, cfg.MongoDatabase)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := docs.EnsureIndexes(indexCtx); err != nil {
		cancelIndexes()
		log.Fatalf("Failed to create document indexes: %v", err)
	}
	cancelIndexes()

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	var cacheManager *cache.CacheManager
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process locks and no cache", "error", err)
			redisClient = nil
		} else {
			cacheManager = cache.NewCacheManager(redisClient)
		}
	}
	locker := cache.NewLocker(redisClient, cache.LockConfigFor(cfg.StoreTimeout))

	// Event publisher
	var publisher events.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaEventPublisher(cfg.KafkaBrokers, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize event publisher: %v", err)
		}
	} else {
		logger.Info("No Kafka brokers configured, publishing events in-process")
		publisher, _ = events.NewInProcessEventPublisher(slogLogger)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	v := validator.New()

	// Initialize services
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      repoManager.GetRepository(),
		Docs:      docs,
		Cache:     cacheManager,
		Locker:    locker,
		Publisher: publisher,
		Validator: v,
		Metrics:   m,
		Hasher:    services.NewBcryptHasher(0),
		Logger:    slogLogger,
		Config: services.ServiceConfig{
			StoreTimeout:           cfg.StoreTimeout,
			DefaultRole:            cfg.DefaultRole,
			DefaultLanguage:        cfg.DefaultLanguage,
			PlatformName:           cfg.PlatformName,
			CourseCompletionPoints: cfg.CourseCompletionPoints,
			RecentActivityLimit:    services.DefaultServiceConfig().RecentActivityLimit,
			ReconcileBatchSize:     cfg.ReconcileBatchSize,
			ReconcileMaxAttempts:   cfg.ReconcileMaxAttempts,
		},
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	scheduler, err := services.NewReconcileScheduler(serviceManager.Reconciliation(), cfg.ReconcileSchedule, 2*time.Minute, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize reconciliation scheduler: %v", err)
	}
	scheduler.Start()

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, m)

	authMiddleware := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, serviceManager.Gate(), logger)
	handlers.NewHandlerManager(serviceManager, v, logger, authMiddleware, registry).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Let a running reconciliation pass finish
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Reconciliation pass still running at shutdown")
	}

	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	if err := docs.Close(ctx); err != nil {
		logger.Error("Failed to close document store", "error", err)
	}

	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
