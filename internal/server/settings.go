package server

import (
	"fmt"
	"net/http"
)

// handleGetSettings reconciles against the filesystem before returning the
// document, so hand-deleted or externally-added project folders are always
// reflected in what the UI sees.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.SyncWithFilesystem()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// addProjectRequest is the body of POST /api/settings/projects.
type addProjectRequest struct {
	Key   string `json:"key"`
	Color string `json:"color,omitempty"`
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var req addProjectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	if req.Key == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "project key is required"})
		return
	}

	cfg, err := s.settings.AddProject(req.Key, req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleHideProject(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.HideProject(r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUnhideProject(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.UnhideProject(r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleActivateProject(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.SetActiveProject(r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleRemoveProject(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settings.RemoveProject(r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}
