// Package app provides application-level wiring for the governance
// platform: repositories, services, and the HTTP router.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"workgov/internal/api"
	"workgov/internal/catalog"
	"workgov/internal/config"
	"workgov/internal/db/repository"
	"workgov/internal/domain"
	"workgov/internal/engine"
	"workgov/internal/middleware"
	"workgov/internal/service/compliance"
	"workgov/internal/service/lineage"
	"workgov/internal/service/quality"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	DuckDB  *sql.DB // in-process analytics engine reading gold Parquet
	WriteDB *sql.DB // SQLite metastore, single-connection write pool
	ReadDB  *sql.DB // SQLite metastore, concurrent read pool
	Logger  *slog.Logger
	Clock   domain.Clock // nil means the wall clock
}

// Services groups the service pointers the API handler and CLI need.
type Services struct {
	Quality *quality.Service
	Lineage *lineage.Service
	Audits  *compliance.Auditor
	Runner  *quality.Runner
}

// App is the fully wired application.
type App struct {
	Services Services
	Catalog  domain.CatalogReader
	Metrics  domain.TableMetrics
	History  domain.HistoryRepository
}

// New wires repositories and services from the provided deps and hydrates
// the lineage graph from the metastore.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	// Repositories: write-pool for repos that INSERT/UPDATE, read-pool
	// shared for SELECTs.
	historyRepo := repository.NewHistoryRepo(deps.WriteDB, deps.ReadDB)
	lineageRepo := repository.NewLineageRepo(deps.WriteDB, deps.ReadDB)
	complianceRepo := repository.NewComplianceRepo(deps.WriteDB, deps.ReadDB)

	fileCatalog := catalog.NewFileCatalog(cfg.CatalogDir)
	metrics := engine.NewMetricsEngine(deps.DuckDB, cfg.DataDir)

	lineageSvc := lineage.NewService(lineageRepo, nil, clock,
		deps.Logger.With("component", "lineage"))
	if err := lineageSvc.Load(ctx); err != nil {
		return nil, fmt.Errorf("hydrate lineage graph: %w", err)
	}

	calc := quality.NewCalculator(metrics, lineageSvc, clock)
	agg, err := quality.NewAggregator(domain.DefaultWeights(), clock)
	if err != nil {
		return nil, err
	}
	runner := quality.NewRunner(fileCatalog, metrics, calc, agg, historyRepo,
		deps.Logger.With("component", "runner"), cfg.ScoreParallelism)
	detector := quality.NewDetector(historyRepo, quality.DefaultThresholds(), clock)
	qualitySvc := quality.NewService(historyRepo, runner, detector)

	auditor := compliance.NewAuditor(fileCatalog, historyRepo, lineageSvc,
		complianceRepo, clock, deps.Logger.With("component", "audit"), 0)

	return &App{
		Services: Services{
			Quality: qualitySvc,
			Lineage: lineageSvc,
			Audits:  auditor,
			Runner:  runner,
		},
		Catalog: fileCatalog,
		Metrics: metrics,
		History: historyRepo,
	}, nil
}

// BuildRouter assembles the HTTP router with the full middleware chain.
// Auth is enabled only when a JWT secret is configured.
func (a *App) BuildRouter(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	if cfg.JWTSecret != "" {
		validator, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		r.Use(middleware.Auth(validator))
	}

	handler := api.NewHandler(a.Services.Quality, a.Services.Lineage, a.Services.Audits)
	handler.RegisterRoutes(r)
	return r, nil
}
