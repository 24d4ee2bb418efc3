package server

import (
	"fmt"
	"net/http"

	"github.com/mesh-intelligence/xraydraft/internal/detect"
	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// importRequest is the body of POST /api/xray/import.
type importRequest struct {
	IDs        []string `json:"ids"`
	ProjectKey string   `json:"projectKey"`
}

// importResponse extends the client result with the rewritten drafts.
type importResponse struct {
	types.ImportResult
	Drafts []*types.Draft `json:"drafts,omitempty"`
}

// handleXrayImport pushes the named drafts to Xray and, on success, rewrites
// each one as imported with its assigned key and issue id.
func (s *Server) handleXrayImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	if len(req.IDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "draft ids are required"})
		return
	}
	if req.ProjectKey == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "project key is required"})
		return
	}

	drafts := make([]*types.Draft, 0, len(req.IDs))
	for _, id := range req.IDs {
		d, _, err := s.drafts.Locate(id)
		if err != nil {
			s.writeError(w, fmt.Errorf("draft %s: %w", id, err))
			return
		}
		drafts = append(drafts, d)
	}

	importer, err := s.importer()
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := importer.ImportTests(r.Context(), drafts, req.ProjectKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !res.Success {
		s.writeJSON(w, http.StatusBadGateway, importResponse{ImportResult: *res})
		return
	}

	// Mark each draft imported. Key/issue-id lists come back in draft order;
	// a short list leaves the trailing drafts untouched rather than guessing.
	for i, d := range drafts {
		if i >= len(res.TestKeys) || i >= len(res.TestIssueIDs) {
			s.log.Warn("import result shorter than draft batch", "drafts", len(drafts), "keys", len(res.TestKeys))
			break
		}
		d.MarkImported(res.TestKeys[i], res.TestIssueIDs[i])
		if _, err := s.drafts.Write(d.ID, d); err != nil {
			s.writeError(w, fmt.Errorf("recording import for draft %s: %w", d.ID, err))
			return
		}
	}

	s.writeJSON(w, http.StatusOK, importResponse{ImportResult: *res, Drafts: drafts})
}

// xrayStatusResponse reports whether credentials are present, without
// touching the network.
type xrayStatusResponse struct {
	Configured bool `json:"configured"`
}

func (s *Server) handleXrayStatus(w http.ResponseWriter, r *http.Request) {
	_, err := s.importer()
	s.writeJSON(w, http.StatusOK, xrayStatusResponse{Configured: err == nil})
}

// detectRequest is the body of POST /api/detect.
type detectRequest struct {
	Text string `json:"text"`
}

// handleDetect classifies a step-data snippet for the UI renderer.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid body: %v", err)})
		return
	}
	s.writeJSON(w, http.StatusOK, detect.Detect(req.Text))
}
