package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"workgov/internal/domain"
)

// HistoryRepo implements domain.HistoryRepository using SQLite.
//
// Appends go through the single-connection write pool, so snapshots for a
// table are serialized process-wide. Within the append transaction the
// snapshot time is bumped past the table's previous snapshot if needed,
// keeping measured_at strictly increasing per table.
type HistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewHistoryRepo creates a new HistoryRepo over a write/read pool pair.
func NewHistoryRepo(writeDB, readDB *sql.DB) *HistoryRepo {
	return &HistoryRepo{writeDB: writeDB, readDB: readDB}
}

// Append writes one snapshot and its dimension scores. Never updates a
// prior record.
func (r *HistoryRepo) Append(ctx context.Context, snapshot *domain.QualitySnapshot) error {
	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var last sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(measured_at) FROM quality_snapshots WHERE table_name = ?`,
		snapshot.TableName,
	).Scan(&last)
	if err != nil {
		return fmt.Errorf("read last snapshot time: %w", err)
	}
	if last.Valid {
		prev := decodeTime(last.String)
		if !snapshot.MeasuredAt.After(prev) {
			snapshot.MeasuredAt = prev.Add(time.Microsecond)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quality_snapshots (id, table_name, composite_score, insufficient_data, note, measured_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.TableName, snapshot.CompositeScore,
		boolToInt(snapshot.InsufficientData), snapshot.Note,
		encodeTime(snapshot.MeasuredAt),
	)
	if err != nil {
		return mapDBError(err)
	}

	for _, ds := range snapshot.DimensionScores {
		detail, err := json.Marshal(ds.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail for %s/%s: %w", ds.TableName, ds.Dimension, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dimension_scores (snapshot_id, table_name, dimension, score, sample_size, measured_at, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snapshot.ID, ds.TableName, string(ds.Dimension), ds.Score,
			ds.SampleSize, encodeTime(ds.MeasuredAt), string(detail),
		)
		if err != nil {
			return mapDBError(err)
		}
	}

	return tx.Commit()
}

// Latest returns the most recent snapshot for a table.
func (r *HistoryRepo) Latest(ctx context.Context, tableName string) (*domain.QualitySnapshot, error) {
	snaps, err := r.GetTrend(ctx, tableName, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, domain.ErrNotFound("no snapshots for table %q", tableName)
	}
	return &snaps[0], nil
}

// GetTrend returns up to window snapshots for a table in chronological
// order (oldest first), each with its dimension scores attached.
func (r *HistoryRepo) GetTrend(ctx context.Context, tableName string, window int) ([]domain.QualitySnapshot, error) {
	if window <= 0 {
		window = 7
	}

	rows, err := r.readDB.QueryContext(ctx,
		`SELECT id, table_name, composite_score, insufficient_data, note, measured_at
		 FROM quality_snapshots
		 WHERE table_name = ?
		 ORDER BY measured_at DESC
		 LIMIT ?`,
		tableName, window,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var snaps []domain.QualitySnapshot
	for rows.Next() {
		var s domain.QualitySnapshot
		var insufficient int64
		var measuredAt string
		if err := rows.Scan(&s.ID, &s.TableName, &s.CompositeScore, &insufficient, &s.Note, &measuredAt); err != nil {
			return nil, err
		}
		s.InsufficientData = insufficient != 0
		s.MeasuredAt = decodeTime(measuredAt)
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}

	for i := range snaps {
		scores, err := r.dimensionScores(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].DimensionScores = scores
	}
	return snaps, nil
}

// ListTables returns the distinct table names that have snapshots.
func (r *HistoryRepo) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT DISTINCT table_name FROM quality_snapshots ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (r *HistoryRepo) dimensionScores(ctx context.Context, snapshotID string) ([]domain.DimensionScore, error) {
	rows, err := r.readDB.QueryContext(ctx,
		`SELECT table_name, dimension, score, sample_size, measured_at, detail
		 FROM dimension_scores
		 WHERE snapshot_id = ?
		 ORDER BY id`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var scores []domain.DimensionScore
	for rows.Next() {
		var ds domain.DimensionScore
		var dim, measuredAt, detail string
		if err := rows.Scan(&ds.TableName, &dim, &ds.Score, &ds.SampleSize, &measuredAt, &detail); err != nil {
			return nil, err
		}
		ds.Dimension = domain.Dimension(dim)
		ds.MeasuredAt = decodeTime(measuredAt)
		if err := json.Unmarshal([]byte(detail), &ds.Detail); err != nil {
			return nil, fmt.Errorf("decode detail for snapshot %s: %w", snapshotID, err)
		}
		scores = append(scores, ds)
	}
	return scores, rows.Err()
}
