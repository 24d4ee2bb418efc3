package types

import (
	"errors"
	"time"
)

// Draft statuses. A draft progresses through these statuses between its
// first local save and a successful Xray import.
const (
	StatusNew      = "new"
	StatusDraft    = "draft"
	StatusReady    = "ready"
	StatusImported = "imported"
)

// validStatuses is the set of recognized draft status values.
var validStatuses = map[string]bool{
	StatusNew:      true,
	StatusDraft:    true,
	StatusReady:    true,
	StatusImported: true,
}

// Draft status errors.
var (
	ErrInvalidStatus = errors.New("invalid status value")
	ErrStatusFinal   = errors.New("imported drafts cannot change status")
	ErrMissingID     = errors.New("draft id is required")
)

// ValidStatus reports whether s is a recognized draft status.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// CanTransition reports whether a draft may move from status from to status
// to. New, draft, and ready drafts may move freely among the non-imported
// statuses and forward to imported. Imported is terminal: the only permitted
// "transition" is staying imported.
func CanTransition(from, to string) bool {
	if !validStatuses[to] {
		return false
	}
	if from == StatusImported {
		return to == StatusImported
	}
	return true
}

// Step is a single ordered step of a test-case draft.
// Data is optional; Action and Result describe what to do and what to expect.
type Step struct {
	Action string `json:"action"`
	Data   string `json:"data,omitempty"`
	Result string `json:"result"`
}

// Draft represents a test case under construction. Drafts are persisted as
// individual pretty-printed JSON files; the on-disk location is a pure
// function of (ProjectKey, area-from-Summary, title-from-Summary, ID).
type Draft struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	ProjectKey string `json:"projectKey,omitempty"`
	Status     string `json:"status,omitempty"`
	Steps      []Step `json:"steps,omitempty"`

	// Populated only after a successful Xray import.
	TestKey     string `json:"testKey,omitempty"`
	TestIssueID string `json:"testIssueId,omitempty"`

	// Epoch-millisecond timestamps. The store never sets these; callers are
	// responsible for maintaining them.
	CreatedAt int64 `json:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// DefaultProjectKey is used when a draft carries no project key.
const DefaultProjectKey = "Default"

// Validate checks that the draft is storable. It must run before any
// filesystem mutation.
func (d *Draft) Validate() error {
	if d.ID == "" {
		return ErrMissingID
	}
	if d.Status != "" && !validStatuses[d.Status] {
		return ErrInvalidStatus
	}
	return nil
}

// Project returns the draft's project key, falling back to DefaultProjectKey
// when none is set.
func (d *Draft) Project() string {
	if d.ProjectKey == "" {
		return DefaultProjectKey
	}
	return d.ProjectKey
}

// SetStatus moves the draft to the given status.
// Returns ErrInvalidStatus for unrecognized values and ErrStatusFinal when
// attempting to move an imported draft anywhere else. Idempotent: setting the
// current status succeeds without error.
func (d *Draft) SetStatus(status string) error {
	if !validStatuses[status] {
		return ErrInvalidStatus
	}
	if !CanTransition(d.Status, status) {
		return ErrStatusFinal
	}
	d.Status = status
	return nil
}

// MarkImported records a successful Xray import: status becomes imported,
// the assigned key and issue id are stored, and UpdatedAt is set to now.
func (d *Draft) MarkImported(testKey, testIssueID string) {
	d.Status = StatusImported
	d.TestKey = testKey
	d.TestIssueID = testIssueID
	d.UpdatedAt = time.Now().UnixMilli()
}
