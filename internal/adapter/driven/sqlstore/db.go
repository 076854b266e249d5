// Package sqlstore implements the credential persistence gateway on SQLite or
// PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/ericfisherdev/passpanel/internal/config"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	// SQLite's LIKE only folds ASCII; casefold lowers the full Unicode range
	// the way PostgreSQL's ILIKE does.
	sqlite.MustRegisterDeterministicScalarFunction("casefold", 1, casefold)
}

func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB provides reader and writer connection pools for the credential store.
// On SQLite the writer is limited to a single connection to avoid "database is
// locked" errors and up to 4 readers run concurrently under WAL. On PostgreSQL
// both fields share one pool.
type DB struct {
	Writer *sqlx.DB
	Reader *sqlx.DB
	driver string
}

// NewDB opens the database selected by cfg.Driver and verifies connectivity.
func NewDB(ctx context.Context, cfg config.Database) (*DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return openSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Driver returns the database driver name (sqlite or postgres).
func (db *DB) Driver() string {
	return db.driver
}

// sqliteDSN builds a DSN with WAL mode, busy timeout, synchronous NORMAL,
// foreign keys enabled, and a 64MB cache.
func sqliteDSN(dbPath string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)
}

func openSQLite(ctx context.Context, dbPath string) (*DB, error) {
	dsn := sqliteDSN(dbPath)

	writer, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	if err := writer.PingContext(ctx); err != nil {
		writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	if err := reader.PingContext(ctx); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, driver: config.DriverSQLite}, nil
}

// postgresDSN builds a URL-form connection string so credentials containing
// spaces or quotes need no further escaping.
func postgresDSN(cfg config.Database) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func openPostgres(ctx context.Context, cfg config.Database) (*DB, error) {
	pool, err := sqlx.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxOpen)
	pool.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	return &DB{Writer: pool, Reader: pool, driver: config.DriverPostgres}, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if db.Reader != db.Writer {
		if err := db.Reader.Close(); err != nil {
			firstErr = fmt.Errorf("close reader: %w", err)
		}
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// likeMatch returns a case-insensitive substring predicate on column for one
// bound pattern. PostgreSQL uses ILIKE; SQLite compares casefolded values.
func (db *DB) likeMatch(column string) string {
	if db.driver == config.DriverPostgres {
		return column + ` ILIKE ? ESCAPE '\'`
	}
	return `casefold(` + column + `) LIKE casefold(?) ESCAPE '\'`
}

// Ping verifies the writer pool can reach the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.Writer.PingContext(ctx)
}
