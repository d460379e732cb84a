package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/coursehub/internal/api/handler"
	"github.com/cuongbtq/coursehub/internal/api/router"
	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/config"
	"github.com/cuongbtq/coursehub/internal/filestore"
	"github.com/cuongbtq/coursehub/internal/guard"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/poller"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/cuongbtq/coursehub/shared/logger"
	"github.com/cuongbtq/coursehub/shared/postgresql"
	"github.com/cuongbtq/coursehub/shared/rabbitmq"
	"github.com/cuongbtq/coursehub/shared/redis"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				appLogger.Warn("Failed to release resource", slog.Any("error", err))
			}
		}
	}()

	healthChecks := make(map[string]handler.HealthChecker)
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	files, err := initFileStore(initCtx, &cfg.Storage, appLogger.Component("filestore"))
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}

	// Session store
	var store session.Store = session.NewMemoryStore()
	if cfg.Sessions.Driver == config.SessionsPostgres {
		dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Component("postgres"))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, dbClient.Close)
		healthChecks["database"] = dbClient

		pgStore := session.NewPostgresStore(dbClient.GetDB())
		if cfg.Sessions.EnsureSchema {
			if err := pgStore.EnsureSchema(initCtx); err != nil {
				return fmt.Errorf("failed to create session schema: %w", err)
			}
		}
		store = pgStore
		appLogger.Info("Database connection established")
	}

	// Submission guard
	var submissionGuard guard.Guard = guard.NewMemoryGuard()
	if cfg.Guard.Driver == config.GuardRedis {
		redisClient, err := redis.NewClient(&redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		}, appLogger.Component("redis"))
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		closers = append(closers, redisClient.Close)
		healthChecks["redis"] = redisClient

		submissionGuard = guard.NewRedisGuard(redisClient.GetClient(), cfg.Guard.Prefix, cfg.Guard.TTL, appLogger.Component("guard"))
		appLogger.Info("Redis connection established")
	}

	backendClient, err := backend.NewClient(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, appLogger.Component("backend"))
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}

	// Poll sessions run inline or in the worker service
	var manager session.Manager
	switch cfg.Polling.Mode {
	case config.PollingQueue:
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		closers = append(closers, rabbitClient.Close)
		manager = session.NewQueueDispatcher(store, rabbitClient, appLogger.Component("dispatcher"))
		appLogger.Info("RabbitMQ connection established")
	default:
		p := poller.New(backendClient, poller.Config{
			Interval:    cfg.Polling.Interval,
			MaxAttempts: cfg.Polling.MaxAttempts,
		}, appLogger.Component("poller"))
		manager = session.NewRegistry(store, p, appLogger.Component("registry"))
	}

	service := workflow.NewService(
		workflow.StoreUploader{Store: files},
		backendClient,
		submissionGuard,
		workflow.Config{
			ChunkSize:   cfg.Ingestion.ChunkSize,
			HeaderSplit: mapping.SplitStrategy(cfg.Ingestion.HeaderSplit),
		},
		appLogger.Component("workflow"),
	)

	r := initRouter(cfg, appLogger.Logger, &handler.Dependencies{
		Logger:       appLogger.Component("handler"),
		ServiceName:  cfg.App.Name,
		Workflow:     service,
		Tracker:      workflow.NewTracker(store, manager, appLogger.Component("tracker")),
		Sessions:     store,
		Manager:      manager,
		Files:        files,
		PageSize:     cfg.Sessions.PageSize,
		HealthChecks: healthChecks,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.String("polling_mode", cfg.Polling.Mode),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("sessions", cfg.Sessions.Driver),
		slog.String("guard", cfg.Guard.Driver),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		return err
	}

	if err := manager.Shutdown(ctx); err != nil {
		appLogger.Warn("Poll sessions did not stop cleanly", slog.Any("error", err))
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   time.RFC3339,
	})
}

// initFileStore opens the configured upload storage
func initFileStore(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (filestore.Store, error) {
	if cfg.Driver != config.StorageS3 {
		return filestore.NewLocalStore(cfg.LocalDir)
	}

	s3Cfg := filestore.S3Config{
		Bucket:   cfg.S3.Bucket,
		Prefix:   cfg.S3.Prefix,
		Region:   cfg.S3.Region,
		Endpoint: cfg.S3.Endpoint,
	}
	client, err := filestore.NewS3Client(ctx, s3Cfg)
	if err != nil {
		return nil, err
	}
	return filestore.NewS3Store(client, s3Cfg, logger), nil
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, deps *handler.Dependencies) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(handler.NewHandler(deps), router.Options{
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
}
