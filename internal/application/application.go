package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/api"
	"github.com/eugenenazirov/config-service/internal/backend"
	"github.com/eugenenazirov/config-service/internal/config"
	"github.com/eugenenazirov/config-service/internal/filestore"
	"github.com/eugenenazirov/config-service/internal/metrics"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	selector  *backend.Selector
	collector *metrics.Collector
	handler   *api.Handler
	router    http.Handler
	logger    *zap.Logger
	server    *http.Server
	watcher   *filestore.Watcher

	stopWatcher context.CancelFunc
	watcherDone chan struct{}
	stopOnce    sync.Once
}

// New initializes the application with all dependencies from the provided
// configuration. The backend is resolved before returning, so an unreadable
// configuration source fails here rather than on the first request.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.UseDynamoDB {
		cfg.ConfigFilePath = locateDataFile(cfg.ConfigFilePath, logger)
	}

	collector := metrics.NewCollector(nil)
	selector := backend.NewSelector(backend.NewFactory(cfg, logger, collector))
	if _, err := selector.Backend(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	handler := api.NewHandler(selector,
		api.WithVersion(cfg.Version),
		api.WithLogger(logger),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMetrics(collector),
	)

	app := &App{
		selector:  selector,
		collector: collector,
		handler:   handler,
		router:    apiRouter,
		logger:    logger,
		server:    NewServer(cfg, apiRouter),
	}

	if cfg.WatchConfigFile && !cfg.UseDynamoDB {
		app.watcher = filestore.NewWatcher(cfg.ConfigFilePath, app.Reload, logger)
	}

	return app, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Addr()
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the file watcher, if enabled, and the HTTP server in
// background goroutines and logs the listening address.
func (a *App) Start() error {
	if a.watcher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.stopWatcher = cancel
		a.watcherDone = make(chan struct{})
		go func() {
			defer close(a.watcherDone)
			if err := a.watcher.Run(ctx); err != nil {
				a.logger.Error("configuration file watcher failed", zap.Error(err))
			}
		}()
	}

	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Reload re-reads the active backend's source.
func (a *App) Reload(ctx context.Context) error {
	b, err := a.selector.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Reload(ctx)
}

// Shutdown stops the watcher and gracefully shuts the HTTP server down.
func (a *App) Shutdown(ctx context.Context) error {
	a.stop()
	return a.server.Shutdown(ctx)
}

// Close stops the watcher and closes the HTTP server immediately.
func (a *App) Close() error {
	a.stop()
	return a.server.Close()
}

func (a *App) stop() {
	a.stopOnce.Do(func() {
		if a.stopWatcher != nil {
			a.stopWatcher()
			<-a.watcherDone
		}
	})
}

// Server returns the HTTP server instance.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Selector returns the backend selector serving requests.
func (a *App) Selector() *backend.Selector {
	return a.selector
}

// locateDataFile returns path unchanged unless it is relative and missing
// from the working directory, in which case the project tree is searched
// upwards for it.
func locateDataFile(path string, logger *zap.Logger) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	resolved, err := resolveProjectPath(path)
	if err != nil {
		return path
	}
	logger.Info("resolved configuration file outside working directory",
		zap.String("path", path),
		zap.String("resolved", resolved),
	)
	return resolved
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
