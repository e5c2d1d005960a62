package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"productapi/internal/config"
	"productapi/internal/database"
	"productapi/internal/handlers"
	"productapi/internal/keepalive"
	"productapi/internal/middleware"
	"productapi/internal/repositories"
	"productapi/internal/services"
	"productapi/pkg/health"
	"productapi/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New(), ".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Store ---
	productRepo, closeStore := database.Open(ctx, cfg.Database, logger)
	if err := productRepo.EnsureIndexes(ctx, cfg.Database.UniqueNames); err != nil {
		logger.Error("Failed to ensure product indexes", zap.Error(err))
	}

	// --- Events ---
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue}, logger)
		if err != nil {
			logger.Error("Failed to initialize RabbitMQ client, product events disabled", zap.Error(err))
		} else {
			publisher = mqClient
		}
	}

	// --- Services and handlers ---
	productService := services.NewProductService(productRepo, publisher, logger)
	productHandler := handlers.NewProductHandler(productService, logger)

	// --- Health ---
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("database", 5*time.Second, productRepo.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	app := newApp(logger, productHandler, productRepo, healthSvc)

	// --- Keep-alive ---
	keepalive.New(cfg.KeepAlive.URL, cfg.KeepAlive.Interval, cfg.KeepAlive.Timeout, logger).Start(ctx)

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server is running", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Env))
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
	healthSvc.SetReady(false)
	cancel()

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	healthSvc.Stop()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer closeCancel()
	if err := closeStore(closeCtx); err != nil {
		logger.Error("Error closing database", zap.Error(err))
	}
	if mqClient != nil {
		if err := mqClient.Close(); err != nil {
			logger.Error("Error closing RabbitMQ client", zap.Error(err))
		}
	}

	logger.Info("Server gracefully stopped")
}

// newApp builds the Fiber application with middleware, health endpoints and product routes.
func newApp(logger *zap.Logger, productHandler *handlers.ProductHandler, repo repositories.ProductRepository, healthSvc *health.Health) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "productapi",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(middleware.Recover(logger))
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		dbState := "connected"
		if err := repo.Ping(ctx); err != nil {
			dbState = "disconnected"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
		})
	})
	app.Get("/livez", healthSvc.LiveHandler)
	app.Get("/readyz", healthSvc.ReadyHandler)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)

	return app
}

// newLogger builds a JSON logger, or a console logger in development, at LOG_LEVEL.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
