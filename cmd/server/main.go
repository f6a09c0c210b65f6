package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planning-poker/internal/config"
	"planning-poker/internal/db"
	"planning-poker/internal/logging"
	"planning-poker/internal/memstore"
	"planning-poker/internal/poker"
	"planning-poker/internal/server"
	"planning-poker/internal/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	srv := server.New(store, cfg)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("planning poker server listening", "addr", cfg.Addr(), "store", cfg.StoreDriver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg config.Config) (poker.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		conn, err := db.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DBAutoMigrate {
			if err := db.Migrate(conn); err != nil {
				return nil, nil, err
			}
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("access connection pool: %w", err)
		}
		return db.NewStore(conn), sqlDB, nil
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return memstore.New(), nopCloser{}, nil
	}
}
