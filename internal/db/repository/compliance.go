package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"workgov/internal/domain"
)

// ComplianceRepo implements domain.ComplianceRepository using SQLite.
// The audit log is append-only: each run inserts a fresh batch under a new
// run ID and prior entries are left untouched.
type ComplianceRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// NewComplianceRepo creates a new ComplianceRepo over a write/read pool pair.
func NewComplianceRepo(writeDB, readDB *sql.DB) *ComplianceRepo {
	return &ComplianceRepo{writeDB: writeDB, readDB: readDB}
}

// InsertEntries appends one audit run's entries in a single transaction.
func (r *ComplianceRepo) InsertEntries(ctx context.Context, entries []domain.ComplianceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range entries {
		refs, err := json.Marshal(e.EvidenceRefs)
		if err != nil {
			return fmt.Errorf("marshal evidence refs: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO compliance_entries (id, run_id, framework, check_name, artifact_id, status, note, evidence_refs, checked_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.RunID, string(e.Framework), e.CheckName, e.ArtifactID,
			string(e.Status), e.Note, string(refs), encodeTime(e.CheckedAt),
		)
		if err != nil {
			return mapDBError(err)
		}
	}

	return tx.Commit()
}

// List returns audit entries matching the filter, newest first.
func (r *ComplianceRepo) List(ctx context.Context, filter domain.ComplianceFilter) ([]domain.ComplianceEntry, int64, error) {
	var conds []string
	var args []interface{}
	if filter.Framework != nil {
		conds = append(conds, "framework = ?")
		args = append(args, string(*filter.Framework))
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.RunID != nil {
		conds = append(conds, "run_id = ?")
		args = append(args, *filter.RunID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	err := r.readDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM compliance_entries"+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT id, run_id, framework, check_name, artifact_id, status, note, evidence_refs, checked_at
		 FROM compliance_entries` + where + ` ORDER BY checked_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, filter.Page.Limit(), filter.Page.Offset())

	rows, err := r.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.ComplianceEntry
	for rows.Next() {
		var e domain.ComplianceEntry
		var framework, status, refs, checkedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &framework, &e.CheckName, &e.ArtifactID, &status, &e.Note, &refs, &checkedAt); err != nil {
			return nil, 0, err
		}
		e.Framework = domain.Framework(framework)
		e.Status = domain.ComplianceStatus(status)
		e.CheckedAt = decodeTime(checkedAt)
		if err := json.Unmarshal([]byte(refs), &e.EvidenceRefs); err != nil {
			return nil, 0, fmt.Errorf("decode evidence refs for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// LatestRunID returns the most recent run ID for a framework.
func (r *ComplianceRepo) LatestRunID(ctx context.Context, framework domain.Framework) (string, error) {
	var runID string
	err := r.readDB.QueryRowContext(ctx,
		`SELECT run_id FROM compliance_entries
		 WHERE framework = ?
		 ORDER BY checked_at DESC LIMIT 1`,
		string(framework),
	).Scan(&runID)
	if err != nil {
		return "", mapDBError(err)
	}
	return runID, nil
}
