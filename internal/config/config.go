// Package config loads and validates configuration at startup.
// Fail-fast: if a required value is missing or malformed, Load returns an error.
//
// Values come from an optional YAML file (CONFIG_PATH) and are then
// overridden by environment variables. Unset keys keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ned0ra/diplom/internal/schema"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all runtime configuration.
type Config struct {
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	RedisURL    string `yaml:"redis_url"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDB     string `yaml:"mongo_db"`

	APIBaseURL     string        `yaml:"api_base_url"`
	FetchBatchSize int           `yaml:"fetch_batch_size"`
	MaxVacancies   int           `yaml:"fetch_max_vacancies"`
	FetchDelay     time.Duration `yaml:"fetch_delay"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`

	Schedule   string        `yaml:"sync_schedule"`
	Retries    int           `yaml:"run_retries"`
	RetryDelay time.Duration `yaml:"run_retry_delay"`
	HandoffTTL time.Duration `yaml:"handoff_ttl"`
	TitleMode  string        `yaml:"title_mode"`

	SchemaVersion string `yaml:"schema_version"`

	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	LogLevel string `yaml:"log_level"`
	LogDev   bool   `yaml:"log_dev"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		StoreDriver:    DriverPostgres,
		SQLitePath:     "data/vacancies.db",
		MongoDB:        "vacancy_sync",
		APIBaseURL:     "https://opendata.trudvsem.ru/api/v1",
		FetchBatchSize: 100,
		MaxVacancies:   500,
		FetchDelay:     time.Second,
		HTTPTimeout:    15 * time.Second,
		Schedule:       "*/12 * * * *",
		Retries:        2,
		RetryDelay:     5 * time.Minute,
		HandoffTTL:     time.Hour,
		TitleMode:      "verbatim",
		SchemaVersion:  schema.V1Version,
		HTTPPort:       "8080",
		LogLevel:       "info",
	}
}

// Load reads CONFIG_PATH (if set) and the environment and returns a
// validated Config.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("CONFIG_PATH %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("STORE_DRIVER", &c.StoreDriver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("REDIS_URL", &c.RedisURL)
	str("MONGO_URI", &c.MongoURI)
	str("MONGO_DB", &c.MongoDB)
	str("API_BASE_URL", &c.APIBaseURL)
	str("SYNC_SCHEDULE", &c.Schedule)
	str("TITLE_MODE", &c.TitleMode)
	str("SCHEMA_VERSION", &c.SchemaVersion)
	str("HTTP_PORT", &c.HTTPPort)
	str("GRPC_PORT", &c.GRPCPort)
	str("LOG_LEVEL", &c.LogLevel)

	ints := []struct {
		key string
		dst *int
	}{
		{"FETCH_BATCH_SIZE", &c.FetchBatchSize},
		{"FETCH_MAX_VACANCIES", &c.MaxVacancies},
		{"RUN_RETRIES", &c.Retries},
	}
	for _, e := range ints {
		s, ok := os.LookupEnv(e.key)
		if !ok || s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", e.key, s)
		}
		*e.dst = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_DELAY", &c.FetchDelay},
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"RUN_RETRY_DELAY", &c.RetryDelay},
		{"HANDOFF_TTL", &c.HandoffTTL},
	}
	for _, e := range durations {
		s, ok := os.LookupEnv(e.key)
		if !ok || s == "" {
			continue
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s must be a duration, got %q", e.key, s)
		}
		*e.dst = v
	}

	if s, ok := os.LookupEnv("LOG_DEV"); ok && s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("LOG_DEV must be a boolean, got %q", s)
		}
		c.LogDev = v
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver)
	}
	if c.FetchBatchSize < 1 {
		return fmt.Errorf("FETCH_BATCH_SIZE must be positive, got %d", c.FetchBatchSize)
	}
	if c.MaxVacancies < 1 {
		return fmt.Errorf("FETCH_MAX_VACANCIES must be positive, got %d", c.MaxVacancies)
	}
	if c.FetchDelay < 0 || c.HTTPTimeout <= 0 || c.HandoffTTL <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("RUN_RETRY_DELAY must be positive, got %s", c.RetryDelay)
	}
	if _, err := schema.Lookup(c.SchemaVersion); err != nil {
		return fmt.Errorf("SCHEMA_VERSION: %w", err)
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT must not be empty")
	}
	return nil
}
