package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/config-service/internal/model"
)

var (
	// ErrSourceUnavailable indicates the document could not be read or parsed at construction.
	ErrSourceUnavailable = errors.New("configuration source unavailable")
	// ErrReloadFailed indicates a reload failed; the previous data is still served.
	ErrReloadFailed = errors.New("configuration reload failed")
)

// DefaultPath is the document location used when none is configured.
func DefaultPath() string {
	return filepath.Join("data", "configurations.json")
}

// Store serves configuration from a document loaded into memory.
type Store struct {
	path   string
	logger *zap.Logger

	data     atomic.Pointer[model.ConfigurationData]
	reloadMu sync.Mutex
}

// New loads path and returns a ready store. An empty path selects DefaultPath.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := Load(path)
	if err != nil {
		logger.Error("failed to load configuration data", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	s := &Store{path: path, logger: logger}
	s.data.Store(&data)
	logger.Info("configuration data loaded",
		zap.String("path", path),
		zap.Int("tenants", len(data)),
		zap.Int("configs", data.Len()),
	)
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the document at path. Files ending in .yaml or
// .yml are decoded as YAML, everything else as JSON.
func Load(path string) (model.ConfigurationData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data, err := decode(path, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return data, nil
}

func decode(path string, raw []byte) (model.ConfigurationData, error) {
	var data model.ConfigurationData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&data); err != nil {
			return nil, err
		}
		if dec.More() {
			return nil, errors.New("unexpected data after document")
		}
	}
	if data == nil {
		return nil, errors.New("document is empty")
	}
	return data, nil
}

func (s *Store) current() model.ConfigurationData {
	return *s.data.Load()
}

// GetConfig returns the value at the request path, or nil when any level is absent.
func (s *Store) GetConfig(_ context.Context, req model.ConfigRequest) (*model.ConfigValue, error) {
	v, ok := s.current().Lookup(req)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// GetAllConfigs returns a copy of the whole tree.
func (s *Store) GetAllConfigs(context.Context) (model.ConfigurationData, error) {
	return s.current().Clone(), nil
}

func (s *Store) GetTenants(context.Context) ([]string, error) {
	return s.current().Tenants(), nil
}

func (s *Store) GetCloudRegions(_ context.Context, tenant string) ([]string, error) {
	return s.current().CloudRegions(tenant), nil
}

func (s *Store) GetServices(_ context.Context, tenant, cloudRegion string) ([]string, error) {
	return s.current().Services(tenant, cloudRegion), nil
}

func (s *Store) GetConfigNames(_ context.Context, tenant, cloudRegion, service string) ([]string, error) {
	return s.current().ConfigNames(tenant, cloudRegion, service), nil
}

// Reload re-reads the document and swaps it in whole. On failure the
// previous data stays in place.
func (s *Store) Reload(context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	data, err := Load(s.path)
	if err != nil {
		s.logger.Error("configuration reload failed, keeping previous data",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}

	s.data.Store(&data)
	s.logger.Info("configuration data reloaded",
		zap.String("path", s.path),
		zap.Int("tenants", len(data)),
		zap.Int("configs", data.Len()),
	)
	return nil
}
