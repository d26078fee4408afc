package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"workgov/internal/domain"
)

// Runner executes scoring batches. Each table is scored in isolation: a
// table that cannot be read gets a null snapshot with a note and the batch
// moves on. Tables may be scored in parallel; all nine dimensions of a
// table complete before its snapshot is aggregated and appended.
type Runner struct {
	catalog     domain.CatalogReader
	metrics     domain.TableMetrics
	calc        *Calculator
	agg         *Aggregator
	history     domain.HistoryRepository
	logger      *slog.Logger
	parallelism int
}

// NewRunner creates a Runner. parallelism bounds concurrent tables
// (values below 1 mean sequential).
func NewRunner(catalog domain.CatalogReader, metrics domain.TableMetrics, calc *Calculator,
	agg *Aggregator, history domain.HistoryRepository, logger *slog.Logger, parallelism int) *Runner {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		catalog: catalog, metrics: metrics, calc: calc,
		agg: agg, history: history, logger: logger, parallelism: parallelism,
	}
}

// RunAll scores every table in the catalog. Total catalog unavailability
// is structural and propagates; per-table failures do not.
func (r *Runner) RunAll(ctx context.Context) ([]domain.QualitySnapshot, error) {
	descs, err := r.catalog.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return r.runDescriptors(ctx, descs)
}

// RunTables scores the named tables. An unknown table gets a null
// snapshot, same as an unreadable one.
func (r *Runner) RunTables(ctx context.Context, tableNames []string) ([]domain.QualitySnapshot, error) {
	descs := make([]domain.TableDescriptor, 0, len(tableNames))
	var nullSnaps []domain.QualitySnapshot
	for _, name := range tableNames {
		desc, err := r.catalog.Load(ctx, name)
		if err != nil {
			var unavailable *domain.DataUnavailableError
			if errors.As(err, &unavailable) {
				snap := r.nullSnapshot(name, err.Error())
				if appendErr := r.history.Append(ctx, snap); appendErr != nil {
					return nil, appendErr
				}
				nullSnaps = append(nullSnaps, *snap)
				continue
			}
			return nil, err
		}
		descs = append(descs, *desc)
	}

	snaps, err := r.runDescriptors(ctx, descs)
	if err != nil {
		return nil, err
	}
	return append(snaps, nullSnaps...), nil
}

// runDescriptors fans tables out over the worker pool. Cancellation is
// honored between tables: finished snapshots stay, in-flight tables do
// not write one.
func (r *Runner) runDescriptors(ctx context.Context, descs []domain.TableDescriptor) ([]domain.QualitySnapshot, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	results := make([]*domain.QualitySnapshot, len(descs))
	for i := range descs {
		if err := ctx.Err(); err != nil {
			break // cancelled: stop handing out tables, keep what finished
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := r.scoreTable(gctx, &descs[i])
			if err != nil {
				return err
			}
			results[i] = snap
			return nil
		})
	}

	err := g.Wait()

	snaps := make([]domain.QualitySnapshot, 0, len(results))
	for _, s := range results {
		if s != nil {
			snaps = append(snaps, *s)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return snaps, err
	}
	return snaps, ctx.Err()
}

// scoreTable runs all nine calculators for one table, aggregates, and
// appends the snapshot. Data unavailability is contained here.
func (r *Runner) scoreTable(ctx context.Context, desc *domain.TableDescriptor) (*domain.QualitySnapshot, error) {
	effective, note, err := r.reconcileSchema(ctx, desc)
	if err != nil {
		var unavailable *domain.DataUnavailableError
		if !errors.As(err, &unavailable) {
			return nil, err
		}
		r.logger.Warn("table unavailable, writing null snapshot",
			"table", desc.TableName, "error", err)
		snap := r.nullSnapshot(desc.TableName, err.Error())
		if appendErr := r.history.Append(ctx, snap); appendErr != nil {
			return nil, appendErr
		}
		return snap, nil
	}

	scores, err := r.calc.ComputeAll(ctx, effective)
	if err != nil {
		var unavailable *domain.DataUnavailableError
		if !errors.As(err, &unavailable) {
			return nil, err
		}
		r.logger.Warn("scoring failed mid-table, writing null snapshot",
			"table", desc.TableName, "error", err)
		snap := r.nullSnapshot(desc.TableName, err.Error())
		if appendErr := r.history.Append(ctx, snap); appendErr != nil {
			return nil, appendErr
		}
		return snap, nil
	}

	snap := r.agg.Aggregate(desc.TableName, scores)
	snap.Note = note
	if err := r.history.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("append snapshot for %s: %w", desc.TableName, err)
	}

	r.logger.Info("table scored",
		"table", desc.TableName,
		"composite", compositeForLog(snap),
		"insufficient_data", snap.InsufficientData)
	return snap, nil
}

// reconcileSchema intersects the descriptor with the table's actual
// columns. Descriptor columns missing from the data are dropped from
// scoring and surfaced as a reduced-confidence note, per the
// SchemaMismatch recovery policy.
func (r *Runner) reconcileSchema(ctx context.Context, desc *domain.TableDescriptor) (*domain.TableDescriptor, string, error) {
	actual, err := r.metrics.Columns(ctx, desc.TableName)
	if err != nil {
		return nil, "", err
	}

	actualSet := make(map[string]bool, len(actual))
	for _, c := range actual {
		actualSet[c] = true
	}

	var missing []string
	kept := make([]domain.ColumnDescriptor, 0, len(desc.Columns))
	for _, col := range desc.Columns {
		if actualSet[col.Name] {
			kept = append(kept, col)
		} else {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) == 0 {
		return desc, "", nil
	}

	mismatch := &domain.SchemaMismatchError{TableName: desc.TableName, MissingColumns: missing}
	r.logger.Warn("schema mismatch, scoring column intersection",
		"table", desc.TableName, "missing", missing)

	effective := *desc
	effective.Columns = kept
	return &effective, mismatch.Error(), nil
}

func (r *Runner) nullSnapshot(tableName, note string) *domain.QualitySnapshot {
	return &domain.QualitySnapshot{
		ID:               uuid.NewString(),
		TableName:        tableName,
		InsufficientData: true,
		Note:             note,
		MeasuredAt:       r.agg.clock.Now(),
	}
}

func compositeForLog(s *domain.QualitySnapshot) any {
	if s.CompositeScore == nil {
		return "null"
	}
	return *s.CompositeScore
}
