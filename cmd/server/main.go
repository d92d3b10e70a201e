package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/application"
	"github.com/eugenenazirov/config-service/internal/config"
	"github.com/eugenenazirov/config-service/internal/logging"
)

var signalNotify = signal.Notify

// stopper is satisfied by both *application.App and *http.Server.
type stopper interface {
	Shutdown(ctx context.Context) error
	Close() error
}

func main() {
	kingpinApp := kingpin.New("config-service", "Configuration Service - hierarchical configuration lookup by tenant, cloud region and service")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	host := kingpinApp.Flag("host", "Interface the HTTP server binds to").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	dataFile := kingpinApp.Flag("file", "Path to the JSON configuration document (file backend)").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	var useDynamoSet, watchSet bool
	useDynamo := kingpinApp.Flag("use-dynamodb", "Serve configurations from DynamoDB instead of the file").IsSetByUser(&useDynamoSet).Bool()
	watch := kingpinApp.Flag("watch", "Reload the configuration document when it changes").IsSetByUser(&watchSet).Bool()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *host != "" {
		overrides.Host = host
	}

	if *port != "" {
		overrides.Port = port
	}

	if *dataFile != "" {
		overrides.DataFile = dataFile
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if useDynamoSet {
		overrides.UseDynamoDB = useDynamo
	}

	if watchSet {
		overrides.WatchFile = watch
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	backendName := "file"
	if cfg.UseDynamoDB {
		backendName = "dynamodb"
	}
	logger.Info("starting configuration service",
		zap.String("version", cfg.Version),
		zap.String("backend", backendName),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := application.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
}

func shutdown(target stopper, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := target.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := target.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
