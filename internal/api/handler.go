// Package api provides the HTTP handlers for the governance platform REST API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves all API routes.
type Handler struct {
	quality QualityService
	lineage LineageService
	audits  AuditService
}

// NewHandler creates a Handler with its service dependencies.
func NewHandler(quality QualityService, lineage LineageService, audits AuditService) *Handler {
	return &Handler{quality: quality, lineage: lineage, audits: audits}
}

// RegisterRoutes mounts every route on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/quality", func(r chi.Router) {
			r.Get("/tables", h.ListScoredTables)
			r.Get("/scores/{table}", h.GetLatestScore)
			r.Get("/trends/{table}", h.GetTrend)
			r.Get("/degradation/{table}", h.GetDegradation)
			r.Post("/runs", h.RunScoring)
		})
		r.Route("/lineage", func(r chi.Router) {
			r.Get("/nodes/{id}/trace", h.TraceLineage)
			r.Post("/events", h.IngestLineage)
			r.Post("/verify", h.VerifyLinks)
			r.Post("/edges/{id}/status", h.UpdateLinkStatus)
		})
		r.Post("/audits", h.RunAudit)
		r.Get("/audits", h.ListAudits)
	})
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
