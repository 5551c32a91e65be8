package propval

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config consolidates settings of the editor core and its collaborators
type Config struct {
	History  HistoryConfig  `json:"history" yaml:"history"`
	Schema   SchemaConfig   `json:"schema" yaml:"schema"`
	Assets   AssetConfig    `json:"assets" yaml:"assets"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// HistoryConfig contains undo/redo settings
type HistoryConfig struct {
	MaxEntries int `json:"maxEntries" yaml:"maxEntries"`
}

// SchemaConfig contains component schema loading settings
type SchemaConfig struct {
	Directory       string `json:"directory" yaml:"directory"`
	ValidateSchemas bool   `json:"validateSchemas" yaml:"validateSchemas"`
}

// AssetConfig contains asset acquisition settings
type AssetConfig struct {
	MaxBytes       int64  `json:"maxBytes" yaml:"maxBytes"`
	S3Region       string `json:"s3Region" yaml:"s3Region"`
	S3Endpoint     string `json:"s3Endpoint" yaml:"s3Endpoint"`
	S3UsePathStyle bool   `json:"s3UsePathStyle" yaml:"s3UsePathStyle"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	Database       string `json:"database" yaml:"database"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	SSLMode        string `json:"sslMode" yaml:"sslMode"`
	MaxConnections int    `json:"maxConnections" yaml:"maxConnections"`
	Table          string `json:"table" yaml:"table"`
	// UseIAM replaces the password with an Aurora DSQL auth token.
	UseIAM bool   `json:"useIAM" yaml:"useIAM"`
	Region string `json:"region" yaml:"region"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json or console
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		History: HistoryConfig{
			MaxEntries: 1000,
		},
		Schema: SchemaConfig{
			Directory:       "schemas",
			ValidateSchemas: true,
		},
		Assets: AssetConfig{
			MaxBytes: 10 * 1024 * 1024, // 10MB
			S3Region: "us-east-1",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "propval",
			Username:       "postgres",
			SSLMode:        "disable",
			MaxConnections: 10,
			Table:          "component_values",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and applies PROPVAL_*
// environment overrides. An empty path yields the defaults plus overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PROPVAL_DB_HOST"); ok {
		c.Database.Host = v
	}
	if v, ok := lookup("PROPVAL_DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "database.port", Message: "PROPVAL_DB_PORT must be an integer"}
		}
		c.Database.Port = port
	}
	if v, ok := lookup("PROPVAL_DB_NAME"); ok {
		c.Database.Database = v
	}
	if v, ok := lookup("PROPVAL_DB_USER"); ok {
		c.Database.Username = v
	}
	if v, ok := lookup("PROPVAL_DB_PASSWORD"); ok {
		c.Database.Password = v
	}
	if v, ok := lookup("PROPVAL_SCHEMA_DIR"); ok {
		c.Schema.Directory = v
	}
	if v, ok := lookup("PROPVAL_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

// Validate validates the configuration and reports every invalid field
func (c *Config) Validate() error {
	var err error
	if c.History.MaxEntries <= 0 {
		err = multierr.Append(err, &ConfigError{Field: "history.maxEntries", Message: "must be greater than 0"})
	}
	if c.Assets.MaxBytes <= 0 {
		err = multierr.Append(err, &ConfigError{Field: "assets.maxBytes", Message: "must be greater than 0"})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		err = multierr.Append(err, &ConfigError{Field: "database.port", Message: "must be between 1 and 65535"})
	}
	if c.Database.MaxConnections <= 0 {
		err = multierr.Append(err, &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"})
	}
	if c.Database.Table == "" {
		err = multierr.Append(err, &ConfigError{Field: "database.table", Message: "must not be empty"})
	}
	if c.Database.UseIAM && c.Database.Region == "" {
		err = multierr.Append(err, &ConfigError{Field: "database.region", Message: "is required when useIAM is set"})
	}
	if _, lerr := zapcore.ParseLevel(c.Logging.Level); lerr != nil {
		err = multierr.Append(err, &ConfigError{Field: "logging.level", Message: lerr.Error()})
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, &ConfigError{Field: "logging.format", Message: "must be json or console"})
	}
	return err
}

// NewLogger builds a zap logger from the logging settings.
func (c LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
