package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/config"
	"github.com/eugenenazirov/config-service/internal/dynamostore"
	"github.com/eugenenazirov/config-service/internal/filestore"
	"github.com/eugenenazirov/config-service/internal/metrics"
)

// Backend names used in logs and metric labels.
const (
	NameFile     = "file"
	NameDynamoDB = "dynamodb"
)

// NewFactory returns a Factory that builds the backend cfg selects, wrapped
// with logging and metrics.
func NewFactory(cfg config.Config, logger *zap.Logger, collector *metrics.Collector) Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (Backend, error) {
		if cfg.UseDynamoDB {
			store, err := newDynamoStore(ctx, cfg.DynamoDB, logger, collector)
			if err != nil {
				return nil, err
			}
			logger.Info("using dynamodb backend",
				zap.String("table", store.Table()),
				zap.String("region", cfg.DynamoDB.Region),
				zap.Bool("strict_errors", cfg.DynamoDB.StrictErrors),
			)
			return Instrument(store, NameDynamoDB, logger, collector), nil
		}

		store, err := filestore.New(cfg.ConfigFilePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using file backend", zap.String("path", store.Path()))
		return Instrument(store, NameFile, logger, collector), nil
	}
}

func newDynamoStore(ctx context.Context, cfg config.DynamoDBConfig, logger *zap.Logger, collector *metrics.Collector) (*dynamostore.Store, error) {
	client, err := dynamostore.NewClient(ctx, dynamostore.ClientOptions{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create dynamodb client: %w", err)
	}

	opts := []dynamostore.Option{
		dynamostore.WithTenantIndex(cfg.TenantIndex),
		dynamostore.WithStrictErrors(cfg.StrictErrors),
	}
	// In strict mode failures reach the instrumentation layer, which counts them.
	if !cfg.StrictErrors {
		opts = append(opts, dynamostore.WithErrorHook(degradedHook(collector)))
	}
	return dynamostore.New(client, cfg.TableName, logger, opts...), nil
}

// degradedHook counts failures a non-strict store swallows and flags the call
// so the lookup is recorded as an error rather than a miss.
func degradedHook(collector *metrics.Collector) dynamostore.ErrorHook {
	return func(ctx context.Context, op string, _ error) {
		collector.RecordBackendError(NameDynamoDB, op)
		markDegraded(ctx)
	}
}
