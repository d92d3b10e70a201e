package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/config-service/internal/config"
	"github.com/eugenenazirov/config-service/internal/filestore"
)

const rateLimitPath = "/config/tenant1/cloud/us-east-1/service/api-gateway/config/rate-limit"

func writeDocument(t *testing.T, path string, rateLimit string) {
	t.Helper()
	doc := `{"tenant1": {"cloud": {"us-east-1": {"services": {"api-gateway": {"configs": {"rate-limit": {"value": ` +
		rateLimit + `, "unit": "req/s"}}}}}}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(t, "8085")

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if !app.Selector().Has() {
		t.Fatalf("expected backend to be resolved eagerly")
	}
	if app.server == nil || app.router == nil || app.handler == nil || app.collector == nil {
		t.Fatalf("expected server, router, handler and collector to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.watcher != nil {
		t.Fatalf("watcher should be disabled by default")
	}

	rec := get(t, app.Handler(), rateLimitPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"config":{"value":100,"unit":"req/s"}`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = get(t, app.Handler(), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "config_service_backend_lookups_total") {
		t.Fatalf("expected metrics exposition, got %d", rec.Code)
	}
}

func TestNewFailsOnMalformedDocument(t *testing.T) {
	cfg := baseTestConfig(t, "0")
	if err := os.WriteFile(cfg.ConfigFilePath, []byte(`{"tenant1": {"cloud": `), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}

	_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if !errors.Is(err, filestore.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	cfg := baseTestConfig(t, "0")
	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	writeDocument(t, cfg.ConfigFilePath, "250")
	if err := app.Reload(context.Background()); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	if rec := get(t, app.Handler(), rateLimitPath); !strings.Contains(rec.Body.String(), `"value":250`) {
		t.Fatalf("expected reloaded value, got %s", rec.Body.String())
	}
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	cfg := baseTestConfig(t, "0")
	cfg.Host = "127.0.0.1"
	cfg.WatchConfigFile = true

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if app.watcher == nil {
		t.Fatalf("expected watcher to be configured")
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})

	// The watcher starts asynchronously, so keep touching the file until a
	// change is picked up. Each attempt waits out the debounce window.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		writeDocument(t, cfg.ConfigFilePath, "300")
		for range 10 {
			time.Sleep(100 * time.Millisecond)
			if strings.Contains(get(t, app.Handler(), rateLimitPath).Body.String(), `"value":300`) {
				return
			}
		}
	}
	t.Fatalf("watcher did not reload the changed document")
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig(t, "9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}

	cfg.Host = "127.0.0.1"
	if got := NewServer(cfg, handler).Addr; got != "127.0.0.1:9090" {
		t.Fatalf("expected host to be applied, got %s", got)
	}
}

func TestResolveProjectPathFindsGoMod(t *testing.T) {
	path, err := resolveProjectPath("go.mod")
	if err != nil {
		t.Fatalf("resolveProjectPath returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected go.mod to exist at %s: %v", path, err)
	}
}

func TestResolveProjectPathUnknownTarget(t *testing.T) {
	if _, err := resolveProjectPath("definitely-not-a-real-file"); err == nil {
		t.Fatalf("expected error for missing resource")
	}
}

func TestLocateDataFile(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if got := locateDataFile(filepath.Join("data", "configurations.json"), logger); !filepath.IsAbs(got) {
		t.Fatalf("expected sample document to be found up the tree, got %s", got)
	}
	abs := filepath.Join(t.TempDir(), "missing.json")
	if got := locateDataFile(abs, logger); got != abs {
		t.Fatalf("absolute paths must be kept, got %s", got)
	}
	if got := locateDataFile("nowhere.json", logger); got != "nowhere.json" {
		t.Fatalf("unresolvable paths must be kept, got %s", got)
	}
}

func baseTestConfig(t *testing.T, port string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configurations.json")
	writeDocument(t, path, "100")

	return config.Config{
		Port:                 port,
		ConfigFilePath:       path,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
		Version:              "test",
	}
}
