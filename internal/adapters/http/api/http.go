// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MatchDependencies
	TransferDependencies
	ApplicantDependencies
	FinalizeDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	matchesHandler   *MatchesHandler
	transferHandler  *TransferHandler
	applicantHandler *ApplicantsHandler
	finalizeHandler  *FinalizeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		matchesHandler:   NewMatchesHandler(deps),
		transferHandler:  NewTransferHandler(deps),
		applicantHandler: NewApplicantsHandler(deps),
		finalizeHandler:  NewFinalizeHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/matches", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.matchesHandler.HandleList, "matches"))
		r.Put("/", MetricsMiddleware(s.matchesHandler.HandleUpsert, "matches"))
		r.Post("/remove", MetricsMiddleware(s.matchesHandler.HandleRemove, "matches_remove"))
		r.Get("/forbidden", MetricsMiddleware(s.matchesHandler.HandleForbidden, "matches_forbidden"))
		r.Post("/import", MetricsMiddleware(s.transferHandler.HandleImport, "matches_import"))
		r.Get("/export", MetricsMiddleware(s.transferHandler.HandleExport, "matches_export"))
	})

	r.Get("/positions/{code}/applicants", MetricsMiddleware(s.applicantHandler.HandleList, "applicants"))

	r.Post("/finalize", MetricsMiddleware(s.finalizeHandler.HandleFinalize, "finalize"))
	r.Post("/assignments/sync", MetricsMiddleware(s.finalizeHandler.HandleSync, "assignments_sync"))
}

// keysRequest is the body of endpoints that act on a set of matches.
type keysRequest struct {
	Keys []string `json:"keys"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Conflicts lists per-match reasons for 409 responses.
	Conflicts any `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
