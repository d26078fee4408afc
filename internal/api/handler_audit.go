package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"workgov/internal/domain"
)

// AuditService defines the audit operations used by the API handler.
type AuditService interface {
	RunAudit(ctx context.Context, framework domain.Framework) ([]domain.ComplianceEntry, error)
	List(ctx context.Context, filter domain.ComplianceFilter) ([]domain.ComplianceEntry, int64, error)
}

type auditRequest struct {
	Framework domain.Framework `json:"framework"`
}

type auditResponse struct {
	Entries []domain.ComplianceEntry `json:"entries"`
}

// RunAudit executes one framework's checklist and returns the full entry
// set. Audits are informational: check failures are entries, not errors.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	if req.Framework == "" {
		writeError(w, domain.ErrValidation("framework is required"))
		return
	}

	entries, err := h.audits.RunAudit(r.Context(), req.Framework)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries})
}

type auditListResponse struct {
	Entries       []domain.ComplianceEntry `json:"entries"`
	Total         int64                    `json:"total"`
	NextPageToken string                   `json:"next_page_token,omitempty"`
}

// ListAudits reads the audit log with optional framework/status/run_id
// filters and offset-token pagination.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.ComplianceFilter{}
	if raw := q.Get("framework"); raw != "" {
		f := domain.Framework(raw)
		filter.Framework = &f
	}
	if raw := q.Get("status"); raw != "" {
		s := domain.ComplianceStatus(raw)
		filter.Status = &s
	}
	if raw := q.Get("run_id"); raw != "" {
		runID := raw
		filter.RunID = &runID
	}
	if raw := q.Get("max_results"); raw != "" {
		maxResults, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.ErrValidation("max_results must be an integer"))
			return
		}
		filter.Page.MaxResults = maxResults
	}
	filter.Page.PageToken = q.Get("page_token")

	entries, total, err := h.audits.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ComplianceEntry{}
	}
	writeJSON(w, http.StatusOK, auditListResponse{
		Entries:       entries,
		Total:         total,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
	})
}
