package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"workgov/internal/domain"
)

// LineageService defines the lineage operations used by the API handler.
type LineageService interface {
	Node(ctx context.Context, id string) (domain.LineageNode, error)
	Trace(ctx context.Context, nodeID string, direction domain.TraceDirection) ([]domain.LineageNode, error)
	VerifyLinks(ctx context.Context) ([]domain.BrokenLink, error)
	IngestEvents(ctx context.Context, events []domain.LineageEvent) error
	UpdateLinkStatus(ctx context.Context, edgeID string, status domain.LinkStatus) error
}

type ingestRequest struct {
	Events []domain.LineageEvent `json:"events"`
}

// IngestLineage accepts transform transitions emitted by the pipeline and
// grows the provenance graph. A batch that would close a derived_from or
// transforms cycle is rejected whole.
func (h *Handler) IngestLineage(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if len(req.Events) == 0 {
		writeError(w, domain.ErrValidation("events must not be empty"))
		return
	}
	if err := h.lineage.IngestEvents(r.Context(), req.Events); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"ingested": len(req.Events)})
}

type traceResponse struct {
	Node      domain.LineageNode    `json:"node"`
	Direction domain.TraceDirection `json:"direction"`
	Trace     []domain.LineageNode  `json:"trace"`
}

// TraceLineage walks the provenance graph from one node. Direction
// defaults to upstream, the "where did this come from" question.
func (h *Handler) TraceLineage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	direction := domain.TraceDirection(r.URL.Query().Get("direction"))
	if direction == "" {
		direction = domain.TraceUp
	}

	node, err := h.lineage.Node(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	trace, err := h.lineage.Trace(r.Context(), id, direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, traceResponse{Node: node, Direction: direction, Trace: trace})
}

type linkStatusRequest struct {
	Status domain.LinkStatus `json:"status"`
}

// UpdateLinkStatus records a curator's decision on a stale policy link:
// re-link it back to active or retire it.
func (h *Handler) UpdateLinkStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req linkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if err := h.lineage.UpdateLinkStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"edge_id": id, "status": string(req.Status)})
}

type verifyResponse struct {
	BrokenLinks []domain.BrokenLink `json:"broken_links"`
}

// VerifyLinks re-checks every policy link and reports this run's failures.
// Broken provenance is a finding, so the response is always a 200.
func (h *Handler) VerifyLinks(w http.ResponseWriter, r *http.Request) {
	broken, err := h.lineage.VerifyLinks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if broken == nil {
		broken = []domain.BrokenLink{}
	}
	writeJSON(w, http.StatusOK, verifyResponse{BrokenLinks: broken})
}
