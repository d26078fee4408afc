package repository

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "workgov/internal/db"
	"workgov/internal/domain"
)

func setupComplianceRepo(t *testing.T) *ComplianceRepo {
	t.Helper()
	writeDB, readDB := internaldb.OpenTestSQLite(t)
	return NewComplianceRepo(writeDB, readDB)
}

func auditEntry(id, runID string, fw domain.Framework, status domain.ComplianceStatus, at time.Time) domain.ComplianceEntry {
	return domain.ComplianceEntry{
		ID:           id,
		RunID:        runID,
		Framework:    fw,
		CheckName:    "data_quality",
		ArtifactID:   "dim_noc",
		Status:       status,
		EvidenceRefs: []string{"snap-1"},
		CheckedAt:    at,
	}
}

func TestComplianceRepo_InsertAndList(t *testing.T) {
	repo := setupComplianceRepo(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []domain.ComplianceEntry{
		auditEntry("e1", "run-1", domain.FrameworkDQMF, domain.StatusCompliant, at),
		auditEntry("e2", "run-1", domain.FrameworkDQMF, domain.StatusNonCompliant, at),
		auditEntry("e3", "run-2", domain.FrameworkDAMA, domain.StatusNotApplicable, at.Add(time.Hour)),
	}
	require.NoError(t, repo.InsertEntries(ctx, entries))

	all, total, err := repo.List(ctx, domain.ComplianceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
	assert.Equal(t, []string{"snap-1"}, all[0].EvidenceRefs)

	fw := domain.FrameworkDQMF
	dqmf, total, err := repo.List(ctx, domain.ComplianceFilter{Framework: &fw})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, dqmf, 2)

	status := domain.StatusNonCompliant
	bad, total, err := repo.List(ctx, domain.ComplianceFilter{Framework: &fw, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, bad, 1)
	assert.Equal(t, "e2", bad[0].ID)
}

func TestComplianceRepo_LatestRunID(t *testing.T) {
	repo := setupComplianceRepo(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertEntries(ctx, []domain.ComplianceEntry{
		auditEntry("e1", "run-1", domain.FrameworkDADM, domain.StatusCompliant, at),
	}))
	require.NoError(t, repo.InsertEntries(ctx, []domain.ComplianceEntry{
		auditEntry("e2", "run-2", domain.FrameworkDADM, domain.StatusCompliant, at.Add(time.Minute)),
	}))

	runID, err := repo.LatestRunID(ctx, domain.FrameworkDADM)
	require.NoError(t, err)
	assert.Equal(t, "run-2", runID)

	_, err = repo.LatestRunID(ctx, domain.FrameworkDAMA)
	require.Error(t, err)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestComplianceRepo_EmptyInsertIsNoop(t *testing.T) {
	repo := setupComplianceRepo(t)
	require.NoError(t, repo.InsertEntries(context.Background(), nil))
}
