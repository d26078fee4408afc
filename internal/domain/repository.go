package domain

import (
	"context"
	"time"
)

// HistoryRepository is the append-only store for quality snapshots.
// Appends for a given table are serialized by the implementation so that
// MeasuredAt is strictly increasing per table.
type HistoryRepository interface {
	Append(ctx context.Context, snapshot *QualitySnapshot) error
	Latest(ctx context.Context, tableName string) (*QualitySnapshot, error)
	// GetTrend returns up to window snapshots for the table, most recent
	// last (chronological order).
	GetTrend(ctx context.Context, tableName string, window int) ([]QualitySnapshot, error)
	ListTables(ctx context.Context) ([]string, error)
}

// LineageRepository persists the provenance graph as flat node and edge
// lists. The full graph is loaded into memory at process start.
type LineageRepository interface {
	InsertNode(ctx context.Context, node *LineageNode) error
	InsertEdge(ctx context.Context, edge *LineageEdge) error
	UpdateEdgeStatus(ctx context.Context, edgeID string, status LinkStatus) error
	ListNodes(ctx context.Context) ([]LineageNode, error)
	ListEdges(ctx context.Context) ([]LineageEdge, error)
}

// ComplianceRepository is the append-only audit log.
type ComplianceRepository interface {
	InsertEntries(ctx context.Context, entries []ComplianceEntry) error
	List(ctx context.Context, filter ComplianceFilter) ([]ComplianceEntry, int64, error)
	LatestRunID(ctx context.Context, framework Framework) (string, error)
}

// CatalogReader provides read-only access to table descriptors. The
// catalog itself is owned by an external collaborator.
type CatalogReader interface {
	Load(ctx context.Context, tableName string) (*TableDescriptor, error)
	LoadAll(ctx context.Context) ([]TableDescriptor, error)
}

// TableMetrics provides aggregate measurements over one gold table's data.
// Implementations compute in the storage engine; rows are never
// materialized in memory.
type TableMetrics interface {
	RowCount(ctx context.Context, table string) (int64, error)
	Columns(ctx context.Context, table string) ([]string, error)
	NullCount(ctx context.Context, table, column string) (int64, error)
	// RuleCounts returns (checked, valid) counts for a validation rule.
	RuleCounts(ctx context.Context, table, column string, rule *ValidationRule) (checked, valid int64, err error)
	// DistinctCount returns the number of distinct non-null values in a column.
	DistinctCount(ctx context.Context, table, column string) (int64, error)
	// OrphanCount returns the number of distinct non-null source values
	// that fail to resolve in the foreign key's target.
	OrphanCount(ctx context.Context, fk ForeignKeyRef) (int64, error)
	DuplicateCount(ctx context.Context, table string, key []string) (int64, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
