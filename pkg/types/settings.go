package types

import "errors"

// Settings store errors.
var (
	ErrUnknownProject = errors.New("unknown project")
)

// ProjectSettings holds per-project metadata used by the drafting UI.
type ProjectSettings struct {
	FunctionalAreas []string `json:"functionalAreas"`
	Labels          []string `json:"labels"`
	Collections     []string `json:"collections"`
	Color           string   `json:"color,omitempty"`
	ReusablePrefix  string   `json:"reusablePrefix,omitempty"`
}

// Settings is the process-wide, single-document state describing known
// projects and the currently selected one. Projects preserves insertion
// order, which is the sidebar order in the UI.
type Settings struct {
	Projects        []string                   `json:"projects"`
	HiddenProjects  []string                   `json:"hiddenProjects"`
	ActiveProject   string                     `json:"activeProject,omitempty"`
	ProjectSettings map[string]ProjectSettings `json:"projectSettings"`
}

// DefaultSettings returns the documented defaults a missing or partial
// settings document is merged over.
func DefaultSettings() Settings {
	return Settings{
		Projects:        []string{},
		HiddenProjects:  []string{},
		ActiveProject:   "",
		ProjectSettings: map[string]ProjectSettings{},
	}
}

// HasProject reports whether key is a known project.
func (s *Settings) HasProject(key string) bool {
	for _, p := range s.Projects {
		if p == key {
			return true
		}
	}
	return false
}

// IsHidden reports whether key is currently hidden from the UI.
func (s *Settings) IsHidden(key string) bool {
	for _, p := range s.HiddenProjects {
		if p == key {
			return true
		}
	}
	return false
}

// FirstVisible returns the first known project that is not hidden, or the
// empty string when every project is hidden or none exist.
func (s *Settings) FirstVisible() string {
	for _, p := range s.Projects {
		if !s.IsHidden(p) {
			return p
		}
	}
	return ""
}
