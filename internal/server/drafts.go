package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.drafts.List(r.URL.Query().Get("project"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if drafts == nil {
		drafts = []*types.Draft{}
	}
	s.writeJSON(w, http.StatusOK, drafts)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, _, err := s.drafts.Locate(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, draft)
}

// handleCreateDraft saves a new draft. An id is generated when the body
// carries none, the status defaults to new, and both timestamps are stamped.
func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var draft types.Draft
	if err := decodeBody(r, &draft); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid draft body: %v", err)})
		return
	}

	if draft.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			s.writeError(w, fmt.Errorf("generating draft id: %w", err))
			return
		}
		draft.ID = id.String()
	}
	if draft.Status == "" {
		draft.Status = types.StatusNew
	}
	now := time.Now().UnixMilli()
	if draft.CreatedAt == 0 {
		draft.CreatedAt = now
	}
	if draft.UpdatedAt == 0 {
		draft.UpdatedAt = now
	}

	if _, err := s.drafts.Write(draft.ID, &draft); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &draft)
}

// handleUpdateDraft rewrites an existing draft, relocating its file when the
// summary or project changed. Imported drafts may not change status.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, _, err := s.drafts.Locate(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var draft types.Draft
	if err := decodeBody(r, &draft); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid draft body: %v", err)})
		return
	}
	draft.ID = id

	if draft.Status == "" {
		draft.Status = existing.Status
	}
	if draft.Status != "" {
		if !types.ValidStatus(draft.Status) {
			s.writeError(w, types.ErrInvalidStatus)
			return
		}
		if !types.CanTransition(existing.Status, draft.Status) {
			s.writeError(w, types.ErrStatusFinal)
			return
		}
	}
	if draft.CreatedAt == 0 {
		draft.CreatedAt = existing.CreatedAt
	}
	draft.UpdatedAt = time.Now().UnixMilli()

	if _, err := s.drafts.Write(id, &draft); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &draft)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	ok, err := s.drafts.Delete(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, types.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllDrafts(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.DeleteAll(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
