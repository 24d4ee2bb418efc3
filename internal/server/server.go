// Package server exposes the draft and settings stores and the Xray client
// over a JSON REST API. Handlers contain no store logic of their own: they
// validate parameters, call the injected interfaces, and map store errors to
// status codes (not-found to 404, validation to 400, everything else to 500).
package server

import (
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"

	"github.com/mesh-intelligence/xraydraft/internal/xray"
	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// ImporterProvider builds an Importer from the current credentials document.
// It is called per import request so edited credentials take effect without
// a restart.
type ImporterProvider func() (types.Importer, error)

// Server wires the stores and the importer behind the REST surface.
type Server struct {
	drafts   types.DraftStore
	settings types.SettingsStore
	importer ImporterProvider
	log      *slog.Logger
}

// New creates a Server. A nil logger falls back to slog.Default.
func New(drafts types.DraftStore, settings types.SettingsStore, importer ImporterProvider, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{drafts: drafts, settings: settings, importer: importer, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/drafts", s.handleListDrafts)
	mux.HandleFunc("POST /api/drafts", s.handleCreateDraft)
	mux.HandleFunc("DELETE /api/drafts", s.handleDeleteAllDrafts)
	mux.HandleFunc("GET /api/drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("PUT /api/drafts/{id}", s.handleUpdateDraft)
	mux.HandleFunc("DELETE /api/drafts/{id}", s.handleDeleteDraft)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings/projects", s.handleAddProject)
	mux.HandleFunc("POST /api/settings/projects/{key}/hide", s.handleHideProject)
	mux.HandleFunc("POST /api/settings/projects/{key}/unhide", s.handleUnhideProject)
	mux.HandleFunc("POST /api/settings/projects/{key}/activate", s.handleActivateProject)
	mux.HandleFunc("DELETE /api/settings/projects/{key}", s.handleRemoveProject)

	mux.HandleFunc("POST /api/xray/import", s.handleXrayImport)
	mux.HandleFunc("GET /api/xray/status", s.handleXrayStatus)

	mux.HandleFunc("POST /api/detect", s.handleDetect)

	mux.Handle("GET /debug/vars", expvar.Handler())

	return s.withRequestLog(mux)
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

// writeError maps err to a status code per the error taxonomy.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrUnknownProject):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrMissingID),
		errors.Is(err, types.ErrInvalidStatus),
		errors.Is(err, types.ErrStatusFinal),
		errors.Is(err, xray.ErrNotConfigured):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeBody parses the request body into v, rejecting unknown noise early.
func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
