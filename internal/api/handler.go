package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/backend"
	"github.com/eugenenazirov/config-service/internal/model"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	healthyMessage  = "Service is running"
	internalError   = "Internal server error"
	internalDetails = "An unexpected error occurred while processing the request"
)

// Handler serves configuration lookups from the active backend.
type Handler struct {
	source  backend.Source
	logger  *zap.Logger
	version string

	clock     func() time.Time
	startedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(version string) HandlerOption {
	return func(h *Handler) {
		if version != "" {
			h.version = version
		}
	}
}

// WithLogger sets the logger used for request-level diagnostics.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler reading from source.
func NewHandler(source backend.Source, opts ...HandlerOption) *Handler {
	h := &Handler{
		source:  source,
		logger:  zap.NewNop(),
		version: "1.0.0",
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := h.clock()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: now,
		Uptime:    now.Sub(h.startedAt).Seconds(),
		Version:   h.version,
		Message:   healthyMessage,
	})
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	req := model.ConfigRequest{
		Tenant:      r.PathValue("tenant"),
		CloudRegion: r.PathValue("cloudRegion"),
		Service:     r.PathValue("service"),
		ConfigName:  r.PathValue("configName"),
	}

	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	value, err := b.GetConfig(r.Context(), req)
	if err != nil {
		h.internalError(w, r, "retrieve configuration", err)
		return
	}

	resp := model.NewConfigResponse(req, value)
	if !resp.Found {
		writeJSON(w, http.StatusNotFound, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetAllConfigs(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	data, err := b.GetAllConfigs(r.Context())
	if err != nil {
		h.internalError(w, r, "retrieve configurations", err)
		return
	}
	if data == nil {
		data = model.ConfigurationData{}
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleListTenants(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "tenants", func(ctx context.Context, b backend.Backend) ([]string, error) {
		return b.GetTenants(ctx)
	})
}

func (h *Handler) handleListCloudRegions(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	h.list(w, r, "cloudRegions", func(ctx context.Context, b backend.Backend) ([]string, error) {
		return b.GetCloudRegions(ctx, tenant)
	})
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	tenant, region := r.PathValue("tenant"), r.PathValue("cloudRegion")
	h.list(w, r, "services", func(ctx context.Context, b backend.Backend) ([]string, error) {
		return b.GetServices(ctx, tenant, region)
	})
}

func (h *Handler) handleListConfigNames(w http.ResponseWriter, r *http.Request) {
	tenant, region, service := r.PathValue("tenant"), r.PathValue("cloudRegion"), r.PathValue("service")
	h.list(w, r, "configs", func(ctx context.Context, b backend.Backend) ([]string, error) {
		return b.GetConfigNames(ctx, tenant, region, service)
	})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	if err := b.Reload(r.Context()); err != nil {
		h.internalError(w, r, "reload configuration", err)
		return
	}
	h.logger.Info("configuration reloaded on request", zap.String("request_id", requestIDFromContext(r.Context())))
	writeJSON(w, http.StatusOK, reloadResponse{Status: "reloaded", ReloadedAt: h.clock()})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, key string, fetch func(context.Context, backend.Backend) ([]string, error)) {
	b, ok := h.backend(w, r)
	if !ok {
		return
	}
	items, err := fetch(r.Context(), b)
	if err != nil {
		h.internalError(w, r, "list "+key, err)
		return
	}
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{key: items})
}

func (h *Handler) backend(w http.ResponseWriter, r *http.Request) (backend.Backend, bool) {
	b, err := h.source.Backend(r.Context())
	if err != nil {
		h.internalError(w, r, "resolve backend", err)
		return nil, false
	}
	return b, true
}

// internalError logs the cause and answers with a generic body.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.Error("request failed",
		zap.String("action", action),
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err),
	)
	writeInternalError(w)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Version   string    `json:"version"`
	Message   string    `json:"message"`
}

type reloadResponse struct {
	Status     string    `json:"status"`
	ReloadedAt time.Time `json:"reloadedAt"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON encodes payload before writing the status, so a payload that
// cannot be encoded turns into a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		writeInternalError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, internalError, internalDetails)
}
