// Command server runs the governance platform HTTP API with optional
// scheduled scoring runs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"workgov/internal/app"
	"workgov/internal/config"
	internaldb "workgov/internal/db"
	"workgov/internal/engine"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	duckDB, err := engine.Open()
	if err != nil {
		return err
	}
	defer duckDB.Close()

	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		return err
	}
	defer writeDB.Close()
	defer readDB.Close()

	logger.Info("running metastore migrations", "path", cfg.MetaDBPath)
	if err := internaldb.RunMigrations(writeDB); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		DuckDB:  duckDB,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	router, err := application.BuildRouter(cfg, logger)
	if err != nil {
		return err
	}

	// Optional periodic scoring runs.
	var scheduler *cron.Cron
	if cfg.ScoreSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.ScoreSchedule, func() {
			snaps, err := application.Services.Runner.RunAll(ctx)
			if err != nil {
				logger.Error("scheduled scoring run failed", "error", err)
				return
			}
			logger.Info("scheduled scoring run complete", "tables", len(snaps))
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		logger.Info("scoring scheduler started", "schedule", cfg.ScoreSchedule)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening",
			"addr", cfg.ListenAddr,
			"healthz", "http://"+curlHostForListenAddr(cfg.ListenAddr)+"/healthz")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// curlHostForListenAddr turns a listen address into a host:port a local
// curl can reach. Wildcard binds map to localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
