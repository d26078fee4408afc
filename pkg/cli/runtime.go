package cli

import (
	"context"
	"log/slog"
	"os"

	"workgov/internal/app"
	"workgov/internal/config"
	internaldb "workgov/internal/db"
	"workgov/internal/engine"
)

// runtime is a fully wired local application plus its teardown.
type runtime struct {
	cfg    *config.Config
	app    *app.App
	logger *slog.Logger
	close  func()
}

// openRuntime loads config, opens the DuckDB engine and SQLite metastore,
// runs migrations, and wires the application.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
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
		return nil, err
	}

	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		duckDB.Close()
		return nil, err
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		duckDB.Close()
		writeDB.Close()
		readDB.Close()
		return nil, err
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		DuckDB:  duckDB,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		duckDB.Close()
		writeDB.Close()
		readDB.Close()
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		app:    application,
		logger: logger,
		close: func() {
			writeDB.Close()
			readDB.Close()
			duckDB.Close()
		},
	}, nil
}
