// Package backend defines the storage contract shared by the file and
// DynamoDB stores, and selects which one serves the process.
package backend

import (
	"context"

	"github.com/eugenenazirov/config-service/internal/model"
)

// Backend is the read contract every configuration store implements.
// Absence is never an error: GetConfig returns nil and listings return an
// empty slice.
type Backend interface {
	GetConfig(ctx context.Context, req model.ConfigRequest) (*model.ConfigValue, error)
	GetAllConfigs(ctx context.Context) (model.ConfigurationData, error)
	GetTenants(ctx context.Context) ([]string, error)
	GetCloudRegions(ctx context.Context, tenant string) ([]string, error)
	GetServices(ctx context.Context, tenant, cloudRegion string) ([]string, error)
	GetConfigNames(ctx context.Context, tenant, cloudRegion, service string) ([]string, error)
	Reload(ctx context.Context) error
}

// Source hands out the active backend.
type Source interface {
	Backend(ctx context.Context) (Backend, error)
}
