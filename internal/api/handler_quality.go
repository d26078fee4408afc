package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"workgov/internal/domain"
)

// QualityService defines the quality operations used by the API handler.
type QualityService interface {
	Latest(ctx context.Context, tableName string) (*domain.QualitySnapshot, error)
	GetTrend(ctx context.Context, tableName string, window int) ([]domain.QualitySnapshot, error)
	Detect(ctx context.Context, tableName string) (*domain.DegradationSignal, error)
	RunAll(ctx context.Context) ([]domain.QualitySnapshot, error)
	RunTables(ctx context.Context, tableNames []string) ([]domain.QualitySnapshot, error)
	ListScoredTables(ctx context.Context) ([]string, error)
}

type tablesResponse struct {
	Tables []string `json:"tables"`
}

// ListScoredTables returns every table with at least one snapshot.
func (h *Handler) ListScoredTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.quality.ListScoredTables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, tablesResponse{Tables: tables})
}

// GetLatestScore returns the table's most recent snapshot. A snapshot with
// insufficient data is a normal 200 with a null composite; 404 means the
// table has never been scored.
func (h *Handler) GetLatestScore(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	snap, err := h.quality.Latest(r.Context(), table)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type trendResponse struct {
	TableName string                   `json:"table_name"`
	Window    int                      `json:"window"`
	Snapshots []domain.QualitySnapshot `json:"snapshots"`
}

// GetTrend returns a trailing window of snapshots, oldest first.
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	window := 7
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, domain.ErrValidation("window must be a positive integer"))
			return
		}
		window = parsed
	}

	snaps, err := h.quality.GetTrend(r.Context(), table, window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trendResponse{TableName: table, Window: window, Snapshots: snaps})
}

type degradationResponse struct {
	TableName string                    `json:"table_name"`
	Signal    *domain.DegradationSignal `json:"signal"` // null when healthy
}

// GetDegradation evaluates the degradation triggers for a table. A healthy
// table returns a 200 with a null signal; degradation is a finding, not an
// error.
func (h *Handler) GetDegradation(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	signal, err := h.quality.Detect(r.Context(), table)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, degradationResponse{TableName: table, Signal: signal})
}

type runRequest struct {
	Tables []string `json:"tables,omitempty"` // empty means the full catalog
}

type runResponse struct {
	Snapshots []domain.QualitySnapshot `json:"snapshots"`
}

// RunScoring triggers a scoring batch synchronously and returns the
// snapshots it produced, null snapshots included.
func (h *Handler) RunScoring(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	var snaps []domain.QualitySnapshot
	var err error
	if len(req.Tables) == 0 {
		snaps, err = h.quality.RunAll(r.Context())
	} else {
		snaps, err = h.quality.RunTables(r.Context(), req.Tables)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Snapshots: snaps})
}
