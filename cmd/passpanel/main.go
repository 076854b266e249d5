package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container (postgres TLS)

	"github.com/ericfisherdev/passpanel/internal/adapter/driven/session"
	"github.com/ericfisherdev/passpanel/internal/adapter/driven/sqlstore"
	httphandler "github.com/ericfisherdev/passpanel/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/passpanel/internal/adapter/driving/web"
	"github.com/ericfisherdev/passpanel/internal/application"
	"github.com/ericfisherdev/passpanel/internal/config"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_driver", cfg.DB.Driver,
		"session_ttl", cfg.SessionTTL,
		"redis_sessions", cfg.UsesRedis(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database.
	db, err := sqlstore.NewDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "driver", db.Driver())

	// 4. Ensure the credentials table exists.
	if err := sqlstore.RunMigrations(db); err != nil {
		return err
	}
	slog.Info("migrations complete")

	health := application.NewHealthService()
	health.Register("database", db)

	// 5. Session store: Redis when configured, otherwise process memory.
	var sessions driven.SessionStore
	if cfg.UsesRedis() {
		client, err := session.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Error("error closing redis client", "error", closeErr)
			}
		}()
		redisStore := session.NewRedisStore(client)
		health.Register("sessions", redisStore)
		sessions = redisStore
		slog.Info("redis session store connected", "addr", cfg.Redis.Addr)
	} else {
		sessions = session.NewMemoryStore()
		slog.Info("using in-memory session store")
	}

	// 6. Wire application services.
	gate, err := application.NewAccessGate(cfg.AccessSecret, cfg.AccessSecretHash, sessions, cfg.SessionTTL)
	if err != nil {
		return err
	}
	credentialSvc := application.NewCredentialService(sqlstore.NewCredentialRepo(db))

	// 7. Register API and GUI routes on one mux.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(credentialSvc, gate, health, cfg.CookieSecure, slog.Default())
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(credentialSvc, gate, cfg.CookieSecure, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("passpanel started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
