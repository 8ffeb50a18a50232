package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ned0ra/diplom/internal/config"
)

var allKeys = []string{
	"CONFIG_PATH", "STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL",
	"MONGO_URI", "MONGO_DB", "API_BASE_URL", "FETCH_BATCH_SIZE",
	"FETCH_MAX_VACANCIES", "FETCH_DELAY", "HTTP_TIMEOUT", "SYNC_SCHEDULE",
	"RUN_RETRIES", "RUN_RETRY_DELAY", "HANDOFF_TTL", "HTTP_PORT", "GRPC_PORT",
	"LOG_LEVEL", "LOG_DEV", "TITLE_MODE", "SCHEMA_VERSION",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/vac")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 100, cfg.FetchBatchSize)
	assert.Equal(t, 500, cfg.MaxVacancies)
	assert.Equal(t, time.Second, cfg.FetchDelay)
	assert.Equal(t, "*/12 * * * *", cfg.Schedule)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 5*time.Minute, cfg.RetryDelay)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Empty(t, cfg.GRPCPort)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "trudvsem/v1", cfg.SchemaVersion)
}

func TestLoad_UnknownSchemaVersion(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "x")
	t.Setenv("SCHEMA_VERSION", "trudvsem/v9")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEMA_VERSION")
	assert.Contains(t, err.Error(), "trudvsem/v9")
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("FETCH_BATCH_SIZE", "50")
	t.Setenv("FETCH_DELAY", "250ms")
	t.Setenv("RUN_RETRIES", "-1")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("TITLE_MODE", "first_word")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 50, cfg.FetchBatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.FetchDelay)
	assert.Equal(t, -1, cfg.Retries)
	assert.True(t, cfg.LogDev)
	assert.Equal(t, "first_word", cfg.TitleMode)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_driver: postgres
database_url: postgres://file/vac
fetch_max_vacancies: 42
run_retry_delay: 30s
sync_schedule: "0 * * * *"
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("FETCH_MAX_VACANCIES", "7")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/vac", cfg.DatabaseURL)
	assert.Equal(t, 7, cfg.MaxVacancies, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown driver":   {"STORE_DRIVER": "mysql"},
		"bad int":          {"DATABASE_URL": "x", "FETCH_BATCH_SIZE": "ten"},
		"zero batch":       {"DATABASE_URL": "x", "FETCH_BATCH_SIZE": "0"},
		"bad duration":     {"DATABASE_URL": "x", "FETCH_DELAY": "soon"},
		"bad bool":         {"DATABASE_URL": "x", "LOG_DEV": "maybe"},
		"missing file":     {"DATABASE_URL": "x", "CONFIG_PATH": "/nonexistent/config.yaml"},
		"empty http port":  {"DATABASE_URL": "x", "HTTP_PORT": ""},
		"zero retry delay": {"DATABASE_URL": "x", "RUN_RETRY_DELAY": "0s"},
		"unknown schema":   {"DATABASE_URL": "x", "SCHEMA_VERSION": "trudvsem/v0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
