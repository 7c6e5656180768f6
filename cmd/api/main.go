package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/controllers"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/routes"
	"bom-analytics-helper/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile, logger := config.InitLogging(cfg)
	if logFile != nil {
		defer logFile.Close()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := config.InitTracing(ctx, cfg)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if err := config.InitDB(cfg); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	if cfg.GinMode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	hooks := services.NewHooks()
	sync := services.NewSyncService(nil, hooks)
	backfill := services.NewBackfillService(nil, sync)
	if notifier := services.NewMailNotifier(cfg); notifier != nil {
		backfill.WithNotifier(notifier)
	}
	status := services.NewStatusService(nil, sync, backfill)

	if !sync.IntegrationAvailable(ctx) {
		logger.Warn("BOM table not found; order syncs are no-ops until the inventory plugin is installed")
	}

	if cfg.RedisAddr != "" {
		rdb, err := services.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable; shop events disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			sub := services.NewEventSubscriber(rdb, cfg.RedisChannel, hooks, backfill)
			if err := sub.Start(ctx); err != nil {
				logger.Warn("event subscriber failed to start", zap.Error(err))
			}
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	routes.SetupRoutes(router, &controllers.Deps{
		Sync:          sync,
		Backfill:      backfill,
		Status:        status,
		Hooks:         hooks,
		Nonces:        middleware.NewNoncesFromSettings(cfg),
		WebhookSecret: cfg.WebhookSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("environment", cfg.Environment),
			zap.Int("backfill_batch_size", backfill.BatchLimit()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
