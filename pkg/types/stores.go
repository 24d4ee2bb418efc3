package types

import (
	"context"
	"errors"
)

// Store operation errors.
var (
	ErrNotFound = errors.New("draft not found")
)

// DraftStore provides CRUD semantics over the file-backed draft hierarchy.
// Implementations map between a draft's identity/metadata and its file
// location under the drafts root.
type DraftStore interface {
	// Locate finds the draft with the given id and returns it together with
	// its resolved file path. Returns ErrNotFound if no draft exists.
	Locate(id string) (*Draft, string, error)

	// List returns drafts under one project, or all projects when projectKey
	// is empty, sorted by UpdatedAt descending. Corrupt files are skipped.
	List(projectKey string) ([]*Draft, error)

	// Write persists the draft at the path derived from its summary and
	// project key, relocating an existing file for the same id when the
	// derived path changed. Returns the final path.
	Write(id string, draft *Draft) (string, error)

	// Delete removes the draft file and any now-empty parent directories.
	// Returns false (not an error) when the id is unknown.
	Delete(id string) (bool, error)

	// DeleteAll removes every draft, leaving the drafts root present but
	// empty. Irreversible; confirmation is the caller's concern.
	DeleteAll() error
}

// SettingsStore maintains the single settings document and keeps it
// consistent with the directory listing under the drafts root.
type SettingsStore interface {
	// Read returns the settings merged over DefaultSettings. A missing
	// settings file is not an error.
	Read() (Settings, error)

	// SyncWithFilesystem reconciles the settings document against the real
	// project directories, pruning keys without a directory, registering
	// externally-added directories, and reassigning the active project when
	// it is no longer valid. Persists only when something changed.
	SyncWithFilesystem() (Settings, error)

	// AddProject registers a project key. Re-adding a known project just
	// unhides it. Color is optional; when empty the next palette color is
	// assigned.
	AddProject(key, color string) (Settings, error)

	// HideProject hides key from the UI, reassigning the active project when
	// key was active.
	HideProject(key string) (Settings, error)

	// UnhideProject makes key visible again.
	UnhideProject(key string) (Settings, error)

	// SetActiveProject selects key. Returns ErrUnknownProject without
	// mutating when key is not a known project.
	SetActiveProject(key string) (Settings, error)

	// RemoveProject deletes key from the document entirely. The on-disk
	// draft directory is deliberately left in place.
	RemoveProject(key string) (Settings, error)
}

// ImportResult is the outcome of pushing a batch of drafts to Xray.
type ImportResult struct {
	Success      bool     `json:"success"`
	TestKeys     []string `json:"testKeys,omitempty"`
	TestIssueIDs []string `json:"testIssueIds,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Importer pushes drafts to the Xray Cloud API.
type Importer interface {
	// ImportTests creates one Xray test per draft under the given project
	// and returns the assigned keys and issue ids in draft order.
	ImportTests(ctx context.Context, drafts []*Draft, projectKey string) (*ImportResult, error)
}
