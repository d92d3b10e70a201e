package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/eugenenazirov/config-service/internal/config"
	"github.com/eugenenazirov/config-service/internal/dynamostore"
	"github.com/eugenenazirov/config-service/internal/filestore"
	"github.com/eugenenazirov/config-service/internal/logging"
	"github.com/eugenenazirov/config-service/internal/model"
)

type putter interface {
	PutConfig(ctx context.Context, req model.ConfigRequest, value model.ConfigValue) error
}

type exporter interface {
	GetAllConfigs(ctx context.Context) (model.ConfigurationData, error)
}

func main() {
	app := kingpin.New("config-migrate", "Manage the DynamoDB table backing the configuration service")
	configFile := app.Flag("config", "Path to YAML configuration file").String()
	region := app.Flag("region", "AWS region").String()
	endpoint := app.Flag("endpoint", "DynamoDB endpoint override (e.g. dynamodb-local)").String()
	table := app.Flag("table", "DynamoDB table name").String()
	tenantIndex := app.Flag("tenant-index", "Name of the tenant secondary index").String()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	timeout := app.Flag("timeout", "Overall deadline for the command").Default("5m").Duration()

	createCmd := app.Command("create-table", "Create the configuration table and tenant index")
	waitFor := createCmd.Flag("wait", "How long to wait for the table to become active").Default("2m").Duration()

	migrateCmd := app.Command("migrate", "Load a JSON configuration document into the table")
	source := migrateCmd.Flag("file", "Path to the JSON configuration document").Default(filestore.DefaultPath()).String()

	exportCmd := app.Command("export", "Write the table contents as a JSON configuration document")
	out := exportCmd.Flag("out", "Output file (default stdout)").String()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(&config.CLIOverrides{ConfigFile: *configFile, LogLevel: nonEmpty(*logLevel)})
	if err != nil {
		app.Fatalf("failed to load configuration: %v", err)
	}
	dyn := cfg.DynamoDB
	if *region != "" {
		dyn.Region = *region
	}
	if *endpoint != "" {
		dyn.Endpoint = *endpoint
	}
	if *table != "" {
		dyn.TableName = *table
	}
	if *tenantIndex != "" {
		dyn.TenantIndex = *tenantIndex
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		app.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := dynamostore.NewClient(ctx, dynamostore.ClientOptions{
		Region:          dyn.Region,
		Endpoint:        dyn.Endpoint,
		AccessKeyID:     dyn.AccessKeyID,
		SecretAccessKey: dyn.SecretAccessKey,
	})
	if err != nil {
		logger.Fatal("failed to create dynamodb client", zap.Error(err))
	}
	store := dynamostore.New(client, dyn.TableName, logger,
		dynamostore.WithTenantIndex(dyn.TenantIndex),
		dynamostore.WithStrictErrors(true),
	)

	switch command {
	case createCmd.FullCommand():
		err = createTable(ctx, client, dynamostore.TableSpec{
			Name:        dyn.TableName,
			TenantIndex: dyn.TenantIndex,
			WaitTimeout: *waitFor,
		}, logger)
	case migrateCmd.FullCommand():
		var data model.ConfigurationData
		data, err = filestore.Load(*source)
		if err == nil {
			err = migrate(ctx, store, data, logger)
		}
	case exportCmd.FullCommand():
		err = exportTo(ctx, store, *out)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func createTable(ctx context.Context, client dynamostore.TableAPI, ts dynamostore.TableSpec, logger *zap.Logger) error {
	start := time.Now()
	err := dynamostore.CreateTable(ctx, client, ts)
	if errors.Is(err, dynamostore.ErrTableExists) {
		logger.Info("table already exists", zap.String("table", ts.Name))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("table created", zap.String("table", ts.Name), zap.Duration("duration", time.Since(start)))
	return nil
}

// migrate writes every leaf of data and keeps going past individual failures.
func migrate(ctx context.Context, dst putter, data model.ConfigurationData, logger *zap.Logger) error {
	var result *multierror.Error
	written := 0
	for _, rec := range data.Records() {
		if err := dst.PutConfig(ctx, rec.Request(), rec.Value); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", rec.Key(), err))
			continue
		}
		written++
	}

	logger.Info("migration finished",
		zap.Int("written", written),
		zap.Int("failed", len(result.WrappedErrors())),
	)
	return result.ErrorOrNil()
}

func exportTo(ctx context.Context, src exporter, path string) error {
	if path == "" {
		return export(ctx, src, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export(ctx, src, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func export(ctx context.Context, src exporter, w io.Writer) error {
	data, err := src.GetAllConfigs(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		data = model.ConfigurationData{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
