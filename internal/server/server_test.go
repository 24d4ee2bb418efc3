package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/xraydraft/internal/draftstore"
	"github.com/mesh-intelligence/xraydraft/internal/settings"
	"github.com/mesh-intelligence/xraydraft/internal/xray"
	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// fakeImporter records the batch it received and returns a canned result.
type fakeImporter struct {
	result *types.ImportResult
	err    error
	got    []*types.Draft
}

func (f *fakeImporter) ImportTests(_ context.Context, drafts []*types.Draft, _ string) (*types.ImportResult, error) {
	f.got = drafts
	return f.result, f.err
}

// newTestServer wires real stores in a temp directory behind the handler.
func newTestServer(t *testing.T, imp types.Importer, impErr error) (*httptest.Server, types.DraftStore) {
	t.Helper()
	dir := t.TempDir()

	drafts, err := draftstore.New(filepath.Join(dir, "testCases"), nil)
	require.NoError(t, err)
	cfg := settings.New(filepath.Join(dir, "config", "settings.json"), filepath.Join(dir, "testCases"), nil)

	provider := func() (types.Importer, error) {
		if impErr != nil {
			return nil, impErr
		}
		return imp, nil
	}
	srv := httptest.NewServer(New(drafts, cfg, provider, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, drafts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestDraftLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil, xray.ErrNotConfigured)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/drafts", types.Draft{
		Summary:    "Checkout|Payments|Visa happy path",
		ProjectKey: "WCP",
		Steps:      []types.Step{{Action: "pay", Result: "charged"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created types.Draft
	decodeInto(t, resp, &created)
	assert.NotEmpty(t, created.ID, "server assigns an id")
	assert.Equal(t, types.StatusNew, created.Status)
	assert.NotZero(t, created.CreatedAt)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	t.Run("get returns the stored draft", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/drafts/"+created.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got types.Draft
		decodeInto(t, resp, &got)
		assert.Equal(t, created.Summary, got.Summary)
	})

	t.Run("list filters by project", func(t *testing.T) {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/drafts?project=WCP", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got []*types.Draft
		decodeInto(t, resp, &got)
		require.Len(t, got, 1)

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/drafts?project=OTHER", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeInto(t, resp, &got)
		assert.Empty(t, got, "unknown project lists empty, not null")
	})

	t.Run("update advances status and bumps updatedAt", func(t *testing.T) {
		body := created
		body.Status = types.StatusReady
		resp := doJSON(t, http.MethodPut, srv.URL+"/api/drafts/"+created.ID, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got types.Draft
		decodeInto(t, resp, &got)
		assert.Equal(t, types.StatusReady, got.Status)
		assert.Equal(t, created.CreatedAt, got.CreatedAt, "createdAt survives updates")
		assert.GreaterOrEqual(t, got.UpdatedAt, created.UpdatedAt)
	})

	t.Run("delete then get is 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, srv.URL+"/api/drafts/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/drafts/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = doJSON(t, http.MethodDelete, srv.URL+"/api/drafts/"+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateDraftValidation(t *testing.T) {
	srv, drafts := newTestServer(t, nil, xray.ErrNotConfigured)

	imported := &types.Draft{ID: "imp-1", Summary: "A|B|Done", Status: types.StatusImported}
	_, err := drafts.Write(imported.ID, imported)
	require.NoError(t, err)

	t.Run("imported drafts refuse status changes", func(t *testing.T) {
		body := *imported
		body.Status = types.StatusDraft
		resp := doJSON(t, http.MethodPut, srv.URL+"/api/drafts/imp-1", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		body := *imported
		body.Status = "bogus"
		resp := doJSON(t, http.MethodPut, srv.URL+"/api/drafts/imp-1", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("updating a missing draft is 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, srv.URL+"/api/drafts/nope", types.Draft{Summary: "x"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSettingsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil, xray.ErrNotConfigured)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg types.Settings
	decodeInto(t, resp, &cfg)
	assert.Empty(t, cfg.Projects, "fresh install starts with no projects")

	t.Run("add project", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/settings/projects", addProjectRequest{Key: "WCP"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		decodeInto(t, resp, &cfg)
		assert.Contains(t, cfg.Projects, "WCP")
		assert.NotEmpty(t, cfg.ProjectSettings["WCP"].Color)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/settings/projects", addProjectRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("hide and unhide", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/settings/projects/WCP/hide", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeInto(t, resp, &cfg)
		assert.Contains(t, cfg.HiddenProjects, "WCP")

		resp = doJSON(t, http.MethodPost, srv.URL+"/api/settings/projects/WCP/unhide", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeInto(t, resp, &cfg)
		assert.NotContains(t, cfg.HiddenProjects, "WCP")
	})

	t.Run("activating an unknown project is 404", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/settings/projects/NOPE/activate", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("remove project", func(t *testing.T) {
		resp := doJSON(t, http.MethodDelete, srv.URL+"/api/settings/projects/WCP", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decodeInto(t, resp, &cfg)
		assert.NotContains(t, cfg.Projects, "WCP")
	})
}

func TestXrayImportEndpoint(t *testing.T) {
	imp := &fakeImporter{result: &types.ImportResult{
		Success:      true,
		TestKeys:     []string{"WCP-10"},
		TestIssueIDs: []string{"10010"},
	}}
	srv, drafts := newTestServer(t, imp, nil)

	d := &types.Draft{ID: "d-1", Summary: "A|B|Importable", Status: types.StatusReady}
	_, err := drafts.Write(d.ID, d)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/xray/import", importRequest{IDs: []string{"d-1"}, ProjectKey: "WCP"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got importResponse
	decodeInto(t, resp, &got)
	assert.True(t, got.Success)
	require.Len(t, imp.got, 1, "importer received the located drafts")

	stored, _, err := drafts.Locate("d-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusImported, stored.Status)
	assert.Equal(t, "WCP-10", stored.TestKey)
	assert.Equal(t, "10010", stored.TestIssueID)
}

func TestXrayImportFailures(t *testing.T) {
	t.Run("missing draft aborts before the importer runs", func(t *testing.T) {
		imp := &fakeImporter{result: &types.ImportResult{Success: true}}
		srv, _ := newTestServer(t, imp, nil)

		resp := doJSON(t, http.MethodPost, srv.URL+"/api/xray/import", importRequest{IDs: []string{"ghost"}, ProjectKey: "WCP"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Nil(t, imp.got)
	})

	t.Run("unconfigured credentials are 400", func(t *testing.T) {
		srv, drafts := newTestServer(t, nil, xray.ErrNotConfigured)
		_, err := drafts.Write("d-1", &types.Draft{ID: "d-1", Summary: "A|B|T"})
		require.NoError(t, err)

		resp := doJSON(t, http.MethodPost, srv.URL+"/api/xray/import", importRequest{IDs: []string{"d-1"}, ProjectKey: "WCP"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("failed job leaves drafts untouched", func(t *testing.T) {
		imp := &fakeImporter{result: &types.ImportResult{Success: false, Error: "job failed"}}
		srv, drafts := newTestServer(t, imp, nil)
		_, err := drafts.Write("d-1", &types.Draft{ID: "d-1", Summary: "A|B|T", Status: types.StatusReady})
		require.NoError(t, err)

		resp := doJSON(t, http.MethodPost, srv.URL+"/api/xray/import", importRequest{IDs: []string{"d-1"}, ProjectKey: "WCP"})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		stored, _, err := drafts.Locate("d-1")
		require.NoError(t, err)
		assert.Equal(t, types.StatusReady, stored.Status)
	})

	t.Run("empty id list is rejected", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, errors.New("unused"))
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/xray/import", importRequest{ProjectKey: "WCP"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestXrayStatusEndpoint(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeImporter{}, nil)
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/xray/status", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got xrayStatusResponse
		decodeInto(t, resp, &got)
		assert.True(t, got.Configured)
	})

	t.Run("not configured", func(t *testing.T) {
		srv, _ := newTestServer(t, nil, xray.ErrNotConfigured)
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/xray/status", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got xrayStatusResponse
		decodeInto(t, resp, &got)
		assert.False(t, got.Configured)
	})
}

func TestDetectEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, xray.ErrNotConfigured)

	cases := []struct {
		text     string
		isCode   bool
		language string
	}{
		{`{"amount": 10}`, true, "json"},
		{"Click the submit button", false, "plain"},
	}
	for _, tc := range cases {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/detect", detectRequest{Text: tc.text})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got struct {
			IsCode   bool   `json:"isCode"`
			Language string `json:"language"`
		}
		decodeInto(t, resp, &got)
		assert.Equal(t, tc.isCode, got.IsCode, fmt.Sprintf("text %q", tc.text))
		assert.Equal(t, tc.language, got.Language)
	}
}
