// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// maxSecretBytes is the longest secret bcrypt accepts.
const maxSecretBytes = 72

// ErrMissingConfig is wrapped by every *ConfigurationError.
var ErrMissingConfig = errors.New("missing required configuration")

// ConfigurationError lists every required variable that was absent. It is
// fatal: the application cannot start until the environment is corrected.
type ConfigurationError struct {
	Keys []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingConfig, strings.Join(e.Keys, ", "))
}

func (e *ConfigurationError) Unwrap() error { return ErrMissingConfig }

// Database holds connection parameters for the credential store.
type Database struct {
	Driver       string
	Path         string // sqlite only
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
}

// Redis holds optional session store connection parameters. Addr is empty
// when sessions are kept in memory.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr       string
	DB               Database
	AccessSecret     string
	AccessSecretHash string
	SessionTTL       time.Duration
	Redis            Redis
	CookieSecure     bool
}

// UsesRedis reports whether sessions should be stored in Redis.
func (c *Config) UsesRedis() bool {
	return c.Redis.Addr != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory, if present, is loaded first; variables
// already set in the environment take precedence over it.
//
// Required: PASSPANEL_ACCESS_SECRET or PASSPANEL_ACCESS_SECRET_HASH, plus the
// connection parameters for the selected driver (PASSPANEL_DB_PATH for sqlite;
// PASSPANEL_DB_HOST, _NAME, _USER and _PASSWORD for postgres).
// Optional variables with defaults: PASSPANEL_LISTEN_ADDR (127.0.0.1:8080),
// PASSPANEL_DB_DRIVER (sqlite), PASSPANEL_DB_PATH (passpanel.db),
// PASSPANEL_DB_PORT (5432), PASSPANEL_DB_SSLMODE (disable),
// PASSPANEL_DB_MAX_OPEN_CONNS (10), PASSPANEL_SESSION_TTL (12h),
// PASSPANEL_REDIS_DB (0), PASSPANEL_COOKIE_SECURE (false).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var missing []string

	cfg := &Config{
		ListenAddr:       "127.0.0.1:8080",
		AccessSecret:     os.Getenv("PASSPANEL_ACCESS_SECRET"),
		AccessSecretHash: os.Getenv("PASSPANEL_ACCESS_SECRET_HASH"),
		SessionTTL:       12 * time.Hour,
		DB: Database{
			Driver:       DriverSQLite,
			Path:         "passpanel.db",
			Port:         5432,
			SSLMode:      "disable",
			MaxOpenConns: 10,
		},
		Redis: Redis{
			Addr:     os.Getenv("PASSPANEL_REDIS_ADDR"),
			Password: os.Getenv("PASSPANEL_REDIS_PASSWORD"),
		},
	}

	if v, ok := os.LookupEnv("PASSPANEL_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if cfg.AccessSecret == "" && cfg.AccessSecretHash == "" {
		missing = append(missing, "PASSPANEL_ACCESS_SECRET")
	}
	if len(cfg.AccessSecret) > maxSecretBytes {
		return nil, fmt.Errorf("PASSPANEL_ACCESS_SECRET must be at most %d bytes", maxSecretBytes)
	}

	if v, ok := os.LookupEnv("PASSPANEL_SESSION_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PASSPANEL_SESSION_TTL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("PASSPANEL_SESSION_TTL must be positive, got %s", parsed)
		}
		cfg.SessionTTL = parsed
	}

	if v, ok := os.LookupEnv("PASSPANEL_COOKIE_SECURE"); ok && v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PASSPANEL_COOKIE_SECURE has invalid bool %q: %w", v, err)
		}
		cfg.CookieSecure = secure
	}

	var err error
	if cfg.Redis.DB, err = intEnv("PASSPANEL_REDIS_DB", 0); err != nil {
		return nil, err
	}

	dbMissing, err := loadDatabase(&cfg.DB)
	if err != nil {
		return nil, err
	}
	missing = append(missing, dbMissing...)

	if len(missing) > 0 {
		return nil, &ConfigurationError{Keys: missing}
	}
	return cfg, nil
}

// loadDatabase fills db from the environment and returns the names of
// required variables that are unset for the selected driver.
func loadDatabase(db *Database) ([]string, error) {
	if v, ok := os.LookupEnv("PASSPANEL_DB_DRIVER"); ok && v != "" {
		db.Driver = strings.ToLower(strings.TrimSpace(v))
	}

	var missing []string
	switch db.Driver {
	case DriverSQLite:
		if v, ok := os.LookupEnv("PASSPANEL_DB_PATH"); ok {
			db.Path = v
		}
		if db.Path == "" {
			missing = append(missing, "PASSPANEL_DB_PATH")
		}
	case DriverPostgres, "postgresql":
		db.Driver = DriverPostgres
		db.Path = ""
		required := []struct {
			key string
			dst *string
		}{
			{"PASSPANEL_DB_HOST", &db.Host},
			{"PASSPANEL_DB_NAME", &db.Name},
			{"PASSPANEL_DB_USER", &db.User},
			{"PASSPANEL_DB_PASSWORD", &db.Password},
		}
		for _, r := range required {
			*r.dst = os.Getenv(r.key)
			if *r.dst == "" {
				missing = append(missing, r.key)
			}
		}
		if v, ok := os.LookupEnv("PASSPANEL_DB_SSLMODE"); ok && v != "" {
			db.SSLMode = v
		}
		var err error
		if db.Port, err = intEnv("PASSPANEL_DB_PORT", db.Port); err != nil {
			return nil, err
		}
		if db.MaxOpenConns, err = intEnv("PASSPANEL_DB_MAX_OPEN_CONNS", db.MaxOpenConns); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("PASSPANEL_DB_DRIVER has unsupported value %q (want %s or %s)", db.Driver, DriverSQLite, DriverPostgres)
	}
	return missing, nil
}

func intEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}
