package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	apistorage "github.com/writgo/content-engine/internal/api/storage"
	"github.com/writgo/content-engine/internal/config"
	"github.com/writgo/content-engine/internal/credit"
	"github.com/writgo/content-engine/internal/generation"
	"github.com/writgo/content-engine/internal/links"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/internal/sanitize"
	"github.com/writgo/content-engine/internal/sitemap"
	"github.com/writgo/content-engine/internal/wordpress"
	"github.com/writgo/content-engine/internal/worker"
	"github.com/writgo/content-engine/internal/worker/storage"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
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

	orchestrator := buildOrchestrator(cfg, appLogger, dbClient)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger,
		Storage:       storage.NewStorage(dbClient.GetDB(), appLogger),
		RabbitClient:  rabbitClient,
		Orchestrator:  orchestrator,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
		QueueName:     cfg.RabbitMQ.Queue.Name,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// buildOrchestrator wires the pipeline with its real adapters. Project lookups
// go through the same storage layer the API service uses.
func buildOrchestrator(cfg *config.Config, appLogger *slog.Logger, dbClient *postgresql.Client) *pipeline.Orchestrator {
	rules := make([]sanitize.Rule, len(cfg.Sanitizer.BannedWords))
	for i, bw := range cfg.Sanitizer.BannedWords {
		rules[i] = sanitize.Rule{Word: bw.Word, Replacement: bw.Replacement}
	}

	return pipeline.New(pipeline.Deps{
		Logger:   appLogger,
		Projects: apistorage.NewStorage(dbClient),
		Ledger:   credit.NewLedger(dbClient.GetDB(), appLogger),
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
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
