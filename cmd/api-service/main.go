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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/writgo/content-engine/internal/api/handler"
	"github.com/writgo/content-engine/internal/api/router"
	"github.com/writgo/content-engine/internal/api/storage"
	"github.com/writgo/content-engine/internal/config"
	"github.com/writgo/content-engine/internal/credit"
	"github.com/writgo/content-engine/internal/generation"
	"github.com/writgo/content-engine/internal/links"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/internal/sanitize"
	"github.com/writgo/content-engine/internal/sitemap"
	"github.com/writgo/content-engine/internal/wordpress"
	"github.com/writgo/content-engine/shared/logger"
	"github.com/writgo/content-engine/shared/postgresql"
	"github.com/writgo/content-engine/shared/rabbitmq"
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
		defaultConfigPath = "configs/api-service/config.yaml"
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

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := storage.NewStorage(dbClient)
	ledger := credit.NewLedger(dbClient.GetDB(), appLogger)
	orchestrator := buildOrchestrator(cfg, appLogger, store, ledger, dbClient)

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:       appLogger,
		Storage:      store,
		Ledger:       ledger,
		Orchestrator: orchestrator,
		RabbitClient: rabbitClient,
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
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// buildOrchestrator wires the pipeline with its real adapters.
func buildOrchestrator(cfg *config.Config, appLogger *slog.Logger, store *storage.Storage, ledger *credit.Ledger, dbClient *postgresql.Client) *pipeline.Orchestrator {
	rules := make([]sanitize.Rule, len(cfg.Sanitizer.BannedWords))
	for i, bw := range cfg.Sanitizer.BannedWords {
		rules[i] = sanitize.Rule{Word: bw.Word, Replacement: bw.Replacement}
	}

	return pipeline.New(pipeline.Deps{
		Logger:   appLogger,
		Projects: store,
		Ledger:   ledger,
		Generator: generation.NewClient(generation.Config{
			Endpoint:   cfg.Generation.Endpoint,
			APIKey:     cfg.Generation.APIKey,
			TextModel:  cfg.Generation.TextModel,
			ImageModel: cfg.Generation.ImageModel,
			ImageSize:  cfg.Generation.ImageSize,
			Timeout:    cfg.Generation.Timeout,
		}, appLogger),
		NewPublisher: wordpress.Factory(appLogger),
		Sitemap:      sitemap.NewFetcher(appLogger, cfg.Pipeline.SitemapPageLimit),
		Affiliates:   links.NewRepository(dbClient.GetDB(), appLogger),
		Sanitizer:    sanitize.New(rules),
		Config: pipeline.Config{
			MaxInlineImages:   cfg.Pipeline.MaxInlineImages,
			MaxInternalLinks:  cfg.Pipeline.MaxInternalLinks,
			MaxAffiliateLinks: cfg.Pipeline.MaxAffiliateLinks,
			ImageCallDelay:    cfg.Pipeline.ImageCallDelay,
			PostStatus:        cfg.Pipeline.PostStatus,
		},
	})
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*slog.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
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
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
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
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
