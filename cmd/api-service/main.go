package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/audio-analysis-proxy/internal/analysis"
	"github.com/cuongbtq/audio-analysis-proxy/internal/api/handler"
	"github.com/cuongbtq/audio-analysis-proxy/internal/api/router"
	"github.com/cuongbtq/audio-analysis-proxy/internal/config"
	"github.com/cuongbtq/audio-analysis-proxy/shared/logger"
	"github.com/cuongbtq/audio-analysis-proxy/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Console logger until the configured one is available
	bootLogger := logger.NewDefault()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		bootLogger.Info("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	bootLogger.Info("Loading configuration", slog.String("path", *configPath))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
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

	// Status events are optional and delivered off the request path
	var (
		publisher analysis.StatusPublisher
		events    *analysis.AsyncPublisher
	)
	if cfg.Events.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.Events, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()

		events = analysis.NewAsyncPublisher(
			analysis.NewBrokerPublisher(rabbitClient, cfg.Events.RoutingKey),
			appLogger.Logger,
			cfg.Events.QueueSize,
		)
		publisher = events
		appLogger.Info("RabbitMQ status events enabled",
			slog.String("exchange", cfg.Events.Exchange),
			slog.String("routing_key", cfg.Events.RoutingKey),
			slog.Int("queue_size", cfg.Events.QueueSize),
		)
	}

	client := analysis.NewClient(upstreamConfig(&cfg.Upstream), nil)
	appLogger.Info("Analysis service configured",
		slog.String("submit_url", cfg.Upstream.SubmitURL),
		slog.String("result_url", cfg.Upstream.ResultURL),
		slog.Duration("poll_timeout", cfg.Upstream.PollTimeout),
		slog.Any("pending_codes", cfg.Upstream.PendingCodes),
	)

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, &handler.Dependencies{
		Logger:      appLogger.Logger,
		Submitter:   analysis.NewSubmitter(client, publisher, appLogger.Logger),
		Poller:      analysis.NewPoller(client, publisher, appLogger.Logger),
		ServiceName: cfg.App.Name,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if events != nil {
		g.Go(func() error {
			return events.Run(gctx)
		})
	}

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", slog.Any("error", err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initRabbitMQ initializes the status event publisher
func initRabbitMQ(cfg *config.EventsConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange,
		ExchangeType:       cfg.ExchangeType,
		ExchangeDurable:    true,
		RetryAttempts:      cfg.RetryAttempts,
		RetryInterval:      cfg.RetryInterval,
		Heartbeat:          cfg.Heartbeat,
		PublishRetries:     cfg.PublishRetries,
		PublishRetryDelay:  cfg.PublishRetryDelay,
		PublishBackoffMult: cfg.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

func upstreamConfig(cfg *config.UpstreamConfig) analysis.Config {
	return analysis.Config{
		SubmitURL:    cfg.SubmitURL,
		ResultURL:    cfg.ResultURL,
		ClientID:     cfg.ClientID,
		SecretKey:    cfg.SecretKey,
		Referer:      cfg.Referer,
		UploadField:  cfg.UploadField,
		PollTimeout:  cfg.PollTimeout,
		ExcerptLimit: cfg.ExcerptLimit,
		PendingCodes: cfg.PendingCodes,
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Debug("Router configured", slog.String("gin_mode", gin.Mode()))

	return router.SetupRouter(deps, cfg.Server.MaxUploadBytes)
}
