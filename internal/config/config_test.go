package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every PASSPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"PASSPANEL_LISTEN_ADDR",
	"PASSPANEL_DB_DRIVER",
	"PASSPANEL_DB_PATH",
	"PASSPANEL_DB_HOST",
	"PASSPANEL_DB_PORT",
	"PASSPANEL_DB_NAME",
	"PASSPANEL_DB_USER",
	"PASSPANEL_DB_PASSWORD",
	"PASSPANEL_DB_SSLMODE",
	"PASSPANEL_DB_MAX_OPEN_CONNS",
	"PASSPANEL_ACCESS_SECRET",
	"PASSPANEL_ACCESS_SECRET_HASH",
	"PASSPANEL_SESSION_TTL",
	"PASSPANEL_REDIS_ADDR",
	"PASSPANEL_REDIS_PASSWORD",
	"PASSPANEL_REDIS_DB",
	"PASSPANEL_COOKIE_SECURE",
}

// isolateConfigEnv saves and unsets all PASSPANEL_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_ACCESS_SECRET", "hunter2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "passpanel.db", cfg.DB.Path)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "hunter2", cfg.AccessSecret)
	assert.False(t, cfg.UsesRedis())
	assert.False(t, cfg.CookieSecure)
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_ACCESS_SECRET", "hunter2")
	t.Setenv("PASSPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PASSPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("PASSPANEL_SESSION_TTL", "30m")
	t.Setenv("PASSPANEL_REDIS_ADDR", "redis:6379")
	t.Setenv("PASSPANEL_REDIS_DB", "2")
	t.Setenv("PASSPANEL_COOKIE_SECURE", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DB.Path)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_SecretHashAlone(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_ACCESS_SECRET_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Empty(t, cfg.AccessSecret)
	assert.NotEmpty(t, cfg.AccessSecretHash)
}

func TestLoad_MissingSecret(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"PASSPANEL_ACCESS_SECRET"}, cerr.Keys)
}

func TestLoad_SecretTooLong(t *testing.T) {
	isolateConfigEnv(t)
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'x'
	}
	t.Setenv("PASSPANEL_ACCESS_SECRET", string(long))

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PASSPANEL_ACCESS_SECRET")
}

func TestLoad_Postgres(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_ACCESS_SECRET", "hunter2")
	t.Setenv("PASSPANEL_DB_DRIVER", "PostgreSQL")
	t.Setenv("PASSPANEL_DB_HOST", "db.internal")
	t.Setenv("PASSPANEL_DB_PORT", "6543")
	t.Setenv("PASSPANEL_DB_NAME", "vault")
	t.Setenv("PASSPANEL_DB_USER", "app")
	t.Setenv("PASSPANEL_DB_PASSWORD", "pw")
	t.Setenv("PASSPANEL_DB_SSLMODE", "require")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, Database{
		Driver:       DriverPostgres,
		Host:         "db.internal",
		Port:         6543,
		Name:         "vault",
		User:         "app",
		Password:     "pw",
		SSLMode:      "require",
		MaxOpenConns: 10,
	}, cfg.DB)
}

func TestLoad_PostgresMissingParameters(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_DB_DRIVER", "postgres")
	t.Setenv("PASSPANEL_DB_HOST", "db.internal")

	cfg, err := Load()

	assert.Nil(t, cfg)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{
		"PASSPANEL_ACCESS_SECRET",
		"PASSPANEL_DB_NAME",
		"PASSPANEL_DB_USER",
		"PASSPANEL_DB_PASSWORD",
	}, cerr.Keys)
}

func TestLoad_EmptySQLitePath(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("PASSPANEL_ACCESS_SECRET", "hunter2")
	t.Setenv("PASSPANEL_DB_PATH", "")

	_, err := Load()

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, []string{"PASSPANEL_DB_PATH"}, cerr.Keys)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PASSPANEL_SESSION_TTL", "forever"},
		{"PASSPANEL_SESSION_TTL", "-1h"},
		{"PASSPANEL_DB_DRIVER", "mysql"},
		{"PASSPANEL_REDIS_DB", "zero"},
		{"PASSPANEL_COOKIE_SECURE", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv("PASSPANEL_ACCESS_SECRET", "hunter2")
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
			assert.False(t, errors.Is(err, ErrMissingConfig))
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	isolateConfigEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PASSPANEL_ACCESS_SECRET=from-file\nPASSPANEL_LISTEN_ADDR=127.0.0.1:7000\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("PASSPANEL_LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AccessSecret)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr, "environment wins over .env")
}
