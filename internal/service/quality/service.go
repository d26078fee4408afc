package quality

import (
	"context"

	"workgov/internal/domain"
)

// Service is the read/run facade over the scoring engine: latest scores
// and trends from history, degradation detection, and batch runs.
type Service struct {
	history  domain.HistoryRepository
	runner   *Runner
	detector *Detector
}

// NewService creates a Service.
func NewService(history domain.HistoryRepository, runner *Runner, detector *Detector) *Service {
	return &Service{history: history, runner: runner, detector: detector}
}

// Latest returns a table's most recent snapshot.
func (s *Service) Latest(ctx context.Context, tableName string) (*domain.QualitySnapshot, error) {
	return s.history.Latest(ctx, tableName)
}

// GetTrend returns up to window snapshots, oldest first.
func (s *Service) GetTrend(ctx context.Context, tableName string, window int) ([]domain.QualitySnapshot, error) {
	if window < 1 {
		return nil, domain.ErrValidation("trend window must be positive")
	}
	return s.history.GetTrend(ctx, tableName, window)
}

// Detect evaluates the degradation triggers for a table.
func (s *Service) Detect(ctx context.Context, tableName string) (*domain.DegradationSignal, error) {
	return s.detector.Detect(ctx, tableName)
}

// RunAll scores the full catalog.
func (s *Service) RunAll(ctx context.Context) ([]domain.QualitySnapshot, error) {
	return s.runner.RunAll(ctx)
}

// RunTables scores the named tables.
func (s *Service) RunTables(ctx context.Context, tableNames []string) ([]domain.QualitySnapshot, error) {
	if len(tableNames) == 0 {
		return nil, domain.ErrValidation("no tables named")
	}
	return s.runner.RunTables(ctx, tableNames)
}

// ListScoredTables returns every table with at least one snapshot.
func (s *Service) ListScoredTables(ctx context.Context) ([]string, error) {
	return s.history.ListTables(ctx)
}
