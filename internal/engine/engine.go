// Package engine computes aggregate table measurements with DuckDB.
//
// Gold tables live as local Parquet files under a data directory, one
// <table>.parquet per table. Every metric is a single SQL aggregation
// pushed into DuckDB; row data is never materialized in Go, so tables of
// any size stay within a constant memory budget.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"workgov/internal/domain"
)

// Open opens an in-memory DuckDB handle.
func Open() (*sql.DB, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return conn, nil
}

// MetricsEngine implements domain.TableMetrics over a DuckDB connection.
type MetricsEngine struct {
	db      *sql.DB
	dataDir string
}

// NewMetricsEngine creates a MetricsEngine reading Parquet files from dataDir.
func NewMetricsEngine(db *sql.DB, dataDir string) *MetricsEngine {
	return &MetricsEngine{db: db, dataDir: dataDir}
}

var _ domain.TableMetrics = (*MetricsEngine)(nil)

// tableRef returns the DuckDB relation expression for a gold table, or a
// DataUnavailableError when the Parquet file is missing.
func (e *MetricsEngine) tableRef(table string) (string, error) {
	path := filepath.Join(e.dataDir, table+".parquet")
	if _, err := os.Stat(path); err != nil {
		return "", domain.ErrDataUnavailable(table, "parquet file %s: %v", path, err)
	}
	return fmt.Sprintf("read_parquet(%s)", quoteLiteral(path)), nil
}

// RowCount returns the number of rows in a gold table.
func (e *MetricsEngine) RowCount(ctx context.Context, table string) (int64, error) {
	ref, err := e.tableRef(table)
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.db.QueryRowContext(ctx, "SELECT count(*) FROM "+ref).Scan(&n)
	if err != nil {
		return 0, domain.ErrDataUnavailable(table, "count rows: %v", err)
	}
	return n, nil
}

// Columns returns the actual column names of a gold table.
func (e *MetricsEngine) Columns(ctx context.Context, table string) ([]string, error) {
	ref, err := e.tableRef(table)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, "SELECT * FROM "+ref+" LIMIT 0")
	if err != nil {
		return nil, domain.ErrDataUnavailable(table, "read schema: %v", err)
	}
	defer rows.Close() //nolint:errcheck
	return rows.Columns()
}

// NullCount returns how many rows have a NULL in the given column.
func (e *MetricsEngine) NullCount(ctx context.Context, table, column string) (int64, error) {
	ref, err := e.tableRef(table)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT count(*) - count(%s) FROM %s", quoteIdent(column), ref)
	var n int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, domain.ErrDataUnavailable(table, "null count for %s: %v", column, err)
	}
	return n, nil
}

// RuleCounts evaluates a validation rule against one column. checked is
// the number of non-null values; valid is how many of those satisfied the
// rule. Values are cast to VARCHAR for pattern rules and DOUBLE for range
// rules.
func (e *MetricsEngine) RuleCounts(ctx context.Context, table, column string, rule *domain.ValidationRule) (checked, valid int64, err error) {
	if !rule.Defined() {
		return 0, 0, nil
	}
	ref, err := e.tableRef(table)
	if err != nil {
		return 0, 0, err
	}

	col := quoteIdent(column)
	var predicate string
	switch {
	case rule.Pattern != "":
		predicate = fmt.Sprintf("regexp_full_match(CAST(%s AS VARCHAR), %s)", col, quoteLiteral(rule.Pattern))
	case len(rule.AllowedValues) > 0:
		vals := make([]string, len(rule.AllowedValues))
		for i, v := range rule.AllowedValues {
			vals[i] = quoteLiteral(v)
		}
		predicate = fmt.Sprintf("CAST(%s AS VARCHAR) IN (%s)", col, strings.Join(vals, ", "))
	default:
		var conds []string
		if rule.Min != nil {
			conds = append(conds, fmt.Sprintf("TRY_CAST(%s AS DOUBLE) >= %g", col, *rule.Min))
		}
		if rule.Max != nil {
			conds = append(conds, fmt.Sprintf("TRY_CAST(%s AS DOUBLE) <= %g", col, *rule.Max))
		}
		predicate = strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		"SELECT count(%s), count(*) FILTER (WHERE %s IS NOT NULL AND (%s)) FROM %s",
		col, col, predicate, ref,
	)
	if err := e.db.QueryRowContext(ctx, query).Scan(&checked, &valid); err != nil {
		return 0, 0, domain.ErrDataUnavailable(table, "rule check for %s: %v", column, err)
	}
	return checked, valid, nil
}

// DistinctCount returns the number of distinct non-null values in a column.
func (e *MetricsEngine) DistinctCount(ctx context.Context, table, column string) (int64, error) {
	ref, err := e.tableRef(table)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT count(DISTINCT %s) FROM %s", quoteIdent(column), ref)
	var n int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, domain.ErrDataUnavailable(table, "distinct count for %s: %v", column, err)
	}
	return n, nil
}

// OrphanCount returns how many distinct non-null source values fail to
// resolve in the foreign key's target table. Soft and hard keys are
// measured the same way; enforcement differences live upstream.
func (e *MetricsEngine) OrphanCount(ctx context.Context, fk domain.ForeignKeyRef) (int64, error) {
	srcRef, err := e.tableRef(fk.SourceTable)
	if err != nil {
		return 0, err
	}
	tgtRef, err := e.tableRef(fk.TargetTable)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`SELECT count(DISTINCT s.%s) FROM %s AS s
		 WHERE s.%s IS NOT NULL
		   AND NOT EXISTS (SELECT 1 FROM %s AS t WHERE t.%s = s.%s)`,
		quoteIdent(fk.SourceColumn), srcRef, quoteIdent(fk.SourceColumn), tgtRef,
		quoteIdent(fk.TargetColumn), quoteIdent(fk.SourceColumn),
	)
	var n int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, domain.ErrDataUnavailable(fk.SourceTable, "orphan count for %s: %v", fk.SourceColumn, err)
	}
	return n, nil
}

// DuplicateCount returns the number of surplus rows on a declared business
// key: total rows minus distinct key combinations.
func (e *MetricsEngine) DuplicateCount(ctx context.Context, table string, key []string) (int64, error) {
	if len(key) == 0 {
		return 0, nil
	}
	ref, err := e.tableRef(table)
	if err != nil {
		return 0, err
	}

	cols := make([]string, len(key))
	for i, k := range key {
		cols[i] = quoteIdent(k)
	}
	keyExpr := strings.Join(cols, ", ")

	query := fmt.Sprintf(
		"SELECT count(*) - (SELECT count(*) FROM (SELECT DISTINCT %s FROM %s)) FROM %s",
		keyExpr, ref, ref,
	)
	var n int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, domain.ErrDataUnavailable(table, "duplicate count on (%s): %v", strings.Join(key, ","), err)
	}
	return n, nil
}

// quoteIdent escapes a SQL identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral escapes a SQL string literal with single quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
