package backend

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/metrics"
	"github.com/eugenenazirov/config-service/internal/model"
)

// instrumented logs and counts the outcome of every call to the wrapped
// backend, keeping failures and plain absence apart.
type instrumented struct {
	next      Backend
	name      string
	logger    *zap.Logger
	collector *metrics.Collector
}

// Instrument wraps b with logging and metrics under the given backend name.
func Instrument(b Backend, name string, logger *zap.Logger, collector *metrics.Collector) Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{
		next:      b,
		name:      name,
		logger:    logger.With(zap.String("backend", name)),
		collector: collector,
	}
}

func (i *instrumented) GetConfig(ctx context.Context, req model.ConfigRequest) (*model.ConfigValue, error) {
	ctx, degraded := withDegradation(ctx)
	v, err := i.next.GetConfig(ctx, req)
	switch {
	case err != nil:
		i.failure("GetConfig", err, zap.String("key", model.CompositeKey(req.Tenant, req.CloudRegion, req.Service, req.ConfigName)))
		i.collector.RecordLookup(i.name, metrics.LookupError)
	case degraded.Load():
		// The store logged and counted the failure before answering empty.
		i.collector.RecordLookup(i.name, metrics.LookupError)
	case v == nil:
		i.logger.Debug("config not found",
			zap.String("tenant", req.Tenant),
			zap.String("cloud_region", req.CloudRegion),
			zap.String("service", req.Service),
			zap.String("config_name", req.ConfigName),
		)
		i.collector.RecordLookup(i.name, metrics.LookupNotFound)
	default:
		i.collector.RecordLookup(i.name, metrics.LookupFound)
	}
	return v, err
}

func (i *instrumented) GetAllConfigs(ctx context.Context) (model.ConfigurationData, error) {
	data, err := i.next.GetAllConfigs(ctx)
	if err != nil {
		i.failure("GetAllConfigs", err)
	}
	return data, err
}

func (i *instrumented) GetTenants(ctx context.Context) ([]string, error) {
	return i.list("GetTenants", func() ([]string, error) {
		return i.next.GetTenants(ctx)
	})
}

func (i *instrumented) GetCloudRegions(ctx context.Context, tenant string) ([]string, error) {
	return i.list("GetCloudRegions", func() ([]string, error) {
		return i.next.GetCloudRegions(ctx, tenant)
	})
}

func (i *instrumented) GetServices(ctx context.Context, tenant, cloudRegion string) ([]string, error) {
	return i.list("GetServices", func() ([]string, error) {
		return i.next.GetServices(ctx, tenant, cloudRegion)
	})
}

func (i *instrumented) GetConfigNames(ctx context.Context, tenant, cloudRegion, service string) ([]string, error) {
	return i.list("GetConfigNames", func() ([]string, error) {
		return i.next.GetConfigNames(ctx, tenant, cloudRegion, service)
	})
}

func (i *instrumented) Reload(ctx context.Context) error {
	start := time.Now()
	if err := i.next.Reload(ctx); err != nil {
		i.failure("Reload", err)
		i.collector.RecordReload(i.name, metrics.ReloadFailure)
		return err
	}
	i.collector.RecordReload(i.name, metrics.ReloadSuccess)
	i.logger.Debug("backend reloaded", zap.Duration("duration", time.Since(start)))
	return nil
}

// Unwrap returns the wrapped backend.
func (i *instrumented) Unwrap() Backend {
	return i.next
}

func (i *instrumented) list(op string, call func() ([]string, error)) ([]string, error) {
	out, err := call()
	if err != nil {
		i.failure(op, err)
	}
	return out, err
}

func (i *instrumented) failure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	i.logger.Error("backend failure", fields...)
	i.collector.RecordBackendError(i.name, op)
}

type degradationKey struct{}

// withDegradation returns a context in which a store can flag a failure it
// swallowed, and the flag to read after the call.
func withDegradation(ctx context.Context) (context.Context, *atomic.Bool) {
	flag := new(atomic.Bool)
	return context.WithValue(ctx, degradationKey{}, flag), flag
}

// markDegraded flags the call carried by ctx as answered from a failure.
func markDegraded(ctx context.Context) {
	if flag, ok := ctx.Value(degradationKey{}).(*atomic.Bool); ok {
		flag.Store(true)
	}
}
