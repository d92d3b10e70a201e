package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/config-service/internal/filestore"
)

const (
	defaultPort           = "3000"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultAWSRegion      = "us-east-1"
	defaultTableName      = "ConfigurationsTable"
	defaultTenantIndex    = "tenant-index"
	defaultLogLevel       = "info"
	defaultVersion        = "1.0.0"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Host                 string
	Port                 string
	UseDynamoDB          bool
	ConfigFilePath       string
	WatchConfigFile      bool
	DynamoDB             DynamoDBConfig
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	LogLevel             string
	Version              string
}

// DynamoDBConfig holds the settings of the DynamoDB backend.
type DynamoDBConfig struct {
	Region          string
	Endpoint        string
	TableName       string
	TenantIndex     string
	AccessKeyID     string
	SecretAccessKey string
	StrictErrors    bool
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Host                 string        `yaml:"host"`
	Port                 string        `yaml:"port"`
	UseDynamoDB          *bool         `yaml:"use_dynamodb"`
	ConfigFilePath       string        `yaml:"config_file_path"`
	WatchConfigFile      *bool         `yaml:"watch_config_file"`
	DynamoDB             yamlDynamoDB  `yaml:"dynamodb"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	LogLevel             string        `yaml:"log_level"`
	Version              string        `yaml:"version"`
}

// yamlDynamoDB represents the dynamodb section in YAML. Credentials come
// only from the environment.
type yamlDynamoDB struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	TableName    string `yaml:"table_name"`
	TenantIndex  string `yaml:"tenant_index"`
	StrictErrors *bool  `yaml:"strict_errors"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Host           *string
	Port           *string
	DataFile       *string
	UseDynamoDB    *bool
	WatchFile      *bool
	RateLimitRPS   *float64
	RateLimitBurst *int
	LogLevel       *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:           defaultPort,
		ConfigFilePath: filestore.DefaultPath(),
		DynamoDB: DynamoDBConfig{
			Region:      defaultAWSRegion,
			TableName:   defaultTableName,
			TenantIndex: defaultTenantIndex,
		},
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		Version:              defaultVersion,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	setString(&cfg.Host, yamlCfg.Host)
	setString(&cfg.Port, yamlCfg.Port)
	setString(&cfg.ConfigFilePath, yamlCfg.ConfigFilePath)
	setString(&cfg.LogLevel, yamlCfg.LogLevel)
	setString(&cfg.Version, yamlCfg.Version)
	setBool(&cfg.UseDynamoDB, yamlCfg.UseDynamoDB)
	setBool(&cfg.WatchConfigFile, yamlCfg.WatchConfigFile)
	setBool(&cfg.EnableRequestLogging, yamlCfg.EnableRequestLogging)

	setString(&cfg.DynamoDB.Region, yamlCfg.DynamoDB.Region)
	setString(&cfg.DynamoDB.Endpoint, yamlCfg.DynamoDB.Endpoint)
	setString(&cfg.DynamoDB.TableName, yamlCfg.DynamoDB.TableName)
	setString(&cfg.DynamoDB.TenantIndex, yamlCfg.DynamoDB.TenantIndex)
	setBool(&cfg.DynamoDB.StrictErrors, yamlCfg.DynamoDB.StrictErrors)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	setString(&cfg.Host, env("HOST"))
	setString(&cfg.Port, env("PORT"))
	setString(&cfg.ConfigFilePath, env("CONFIG_FILE_PATH"))
	setString(&cfg.LogLevel, env("LOG_LEVEL"))
	setString(&cfg.Version, env("APP_VERSION"))

	setString(&cfg.DynamoDB.Region, env("AWS_REGION"))
	setString(&cfg.DynamoDB.Endpoint, env("DYNAMODB_ENDPOINT"))
	setString(&cfg.DynamoDB.TableName, env("DYNAMODB_TABLE_NAME"))
	setString(&cfg.DynamoDB.TenantIndex, env("DYNAMODB_TENANT_INDEX"))
	setString(&cfg.DynamoDB.AccessKeyID, env("AWS_ACCESS_KEY_ID"))
	setString(&cfg.DynamoDB.SecretAccessKey, env("AWS_SECRET_ACCESS_KEY"))

	bools := []struct {
		name string
		dst  *bool
	}{
		{"USE_DYNAMODB", &cfg.UseDynamoDB},
		{"WATCH_CONFIG_FILE", &cfg.WatchConfigFile},
		{"DYNAMODB_STRICT_ERRORS", &cfg.DynamoDB.StrictErrors},
	}
	for _, b := range bools {
		raw := env(b.name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", b.name, raw)
		}
		*b.dst = value
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Host != nil {
		setString(&cfg.Host, *overrides.Host)
	}
	if overrides.Port != nil {
		setString(&cfg.Port, *overrides.Port)
	}
	if overrides.DataFile != nil {
		setString(&cfg.ConfigFilePath, *overrides.DataFile)
	}
	if overrides.LogLevel != nil {
		setString(&cfg.LogLevel, *overrides.LogLevel)
	}
	setBool(&cfg.UseDynamoDB, overrides.UseDynamoDB)
	setBool(&cfg.WatchConfigFile, overrides.WatchFile)

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port cannot be empty")
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", cfg.Port)
	}
	if cfg.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_BURST must be >= 0")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.UseDynamoDB {
		if cfg.DynamoDB.TableName == "" {
			return errors.New("DYNAMODB_TABLE_NAME cannot be empty")
		}
		if cfg.DynamoDB.Region == "" {
			return errors.New("AWS_REGION cannot be empty")
		}
	} else if cfg.ConfigFilePath == "" {
		return errors.New("configuration file path cannot be empty")
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}
