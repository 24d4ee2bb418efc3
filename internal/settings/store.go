// Package settings maintains the single settings document describing known
// projects and keeps it consistent with the directory listing under the
// drafts root. All mutation funnels through one locked read-modify-write
// helper: an in-process mutex serializes callers and a file lock guards
// against a second process pointing at the same document.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// Compile-time interface check: Store must implement types.SettingsStore.
var _ types.SettingsStore = (*Store)(nil)

// palette holds the pastel project colors, cycled by project count when a
// new project does not name its own color.
var palette = []string{
	"#FFB3BA",
	"#FFDFBA",
	"#FFFFBA",
	"#BAFFC9",
	"#BAE1FF",
	"#E3BAFF",
	"#FFBAED",
	"#C9C9FF",
}

// lockRetryInterval is how often an acquisition of the settings file lock is
// retried while another process holds it.
const lockRetryInterval = 50 * time.Millisecond

// lockTimeout bounds how long a settings operation waits for the file lock.
const lockTimeout = 5 * time.Second

// Store persists the settings document at a fixed path and reconciles it
// against the drafts root.
type Store struct {
	mu         sync.Mutex // in-process single-writer discipline
	path       string     // settings.json
	draftsRoot string     // testCases directory
	log        *slog.Logger
	flk        *flock.Flock
}

// New creates a settings store for the document at path, reconciling against
// draftsRoot. A nil logger falls back to slog.Default.
func New(path, draftsRoot string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:       path,
		draftsRoot: draftsRoot,
		log:        log,
		flk:        flock.New(path + ".lock"),
	}
}

// Read returns the settings merged over the documented defaults. A missing
// settings file is not an error; a corrupt one is.
func (s *Store) Read() (types.Settings, error) {
	return s.load()
}

// SyncWithFilesystem reconciles the document against the real project
// directories under the drafts root, creating the root if absent. Project
// keys without a directory are pruned along with their projectSettings
// entry; directories with no project entry are registered. The active
// project is reassigned to the first visible project (or cleared) when it is
// no longer valid. Persists only when something changed.
func (s *Store) SyncWithFilesystem() (types.Settings, error) {
	return s.update(func(cfg *types.Settings) (bool, error) {
		dirs, err := s.listProjectDirs()
		if err != nil {
			return false, err
		}
		return s.reconcile(cfg, dirs), nil
	})
}

// AddProject registers key. Re-adding a known project just unhides it;
// otherwise the key is appended, a color assigned (explicit or next pastel),
// default project settings seeded, the project made active when none is,
// and its draft directory created.
func (s *Store) AddProject(key, color string) (types.Settings, error) {
	if key == "" {
		return types.Settings{}, types.ErrUnknownProject
	}
	return s.update(func(cfg *types.Settings) (bool, error) {
		if cfg.HasProject(key) {
			return removeKey(&cfg.HiddenProjects, key), nil
		}

		cfg.Projects = append(cfg.Projects, key)
		if color == "" {
			color = palette[(len(cfg.Projects)-1)%len(palette)]
		}
		cfg.ProjectSettings[key] = types.ProjectSettings{
			FunctionalAreas: []string{},
			Labels:          []string{},
			Collections:     []string{},
			Color:           color,
		}
		if cfg.ActiveProject == "" {
			cfg.ActiveProject = key
		}
		if err := os.MkdirAll(filepath.Join(s.draftsRoot, key), 0o755); err != nil {
			return false, fmt.Errorf("creating project directory: %w", err)
		}
		return true, nil
	})
}

// HideProject hides key from the UI. Hiding the active project reassigns the
// active project to the next visible one, or clears it.
func (s *Store) HideProject(key string) (types.Settings, error) {
	return s.update(func(cfg *types.Settings) (bool, error) {
		if !cfg.HasProject(key) {
			return false, types.ErrUnknownProject
		}
		if cfg.IsHidden(key) {
			return false, nil
		}
		cfg.HiddenProjects = append(cfg.HiddenProjects, key)
		if cfg.ActiveProject == key {
			cfg.ActiveProject = cfg.FirstVisible()
		}
		return true, nil
	})
}

// UnhideProject makes key visible again.
func (s *Store) UnhideProject(key string) (types.Settings, error) {
	return s.update(func(cfg *types.Settings) (bool, error) {
		if !cfg.HasProject(key) {
			return false, types.ErrUnknownProject
		}
		return removeKey(&cfg.HiddenProjects, key), nil
	})
}

// SetActiveProject selects key. Returns ErrUnknownProject without mutating
// when key is not known.
func (s *Store) SetActiveProject(key string) (types.Settings, error) {
	return s.update(func(cfg *types.Settings) (bool, error) {
		if !cfg.HasProject(key) {
			return false, types.ErrUnknownProject
		}
		if cfg.ActiveProject == key {
			return false, nil
		}
		cfg.ActiveProject = key
		return true, nil
	})
}

// RemoveProject deletes key from the projects list, the hidden list, and the
// projectSettings map, reassigning the active project when needed. The
// on-disk draft directory is deliberately left in place: the next
// SyncWithFilesystem re-registers it, so removal is recoverable.
func (s *Store) RemoveProject(key string) (types.Settings, error) {
	return s.update(func(cfg *types.Settings) (bool, error) {
		if !cfg.HasProject(key) {
			return false, types.ErrUnknownProject
		}
		removeKey(&cfg.Projects, key)
		removeKey(&cfg.HiddenProjects, key)
		delete(cfg.ProjectSettings, key)
		if cfg.ActiveProject == key {
			cfg.ActiveProject = cfg.FirstVisible()
		}
		return true, nil
	})
}

// update runs fn under the single-writer discipline: the in-process token
// serializes goroutines, the file lock serializes processes. The document is
// re-read inside the critical section and persisted only when fn reports a
// change.
func (s *Store) update(fn func(cfg *types.Settings) (bool, error)) (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.Settings{}, fmt.Errorf("creating config directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.flk.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return types.Settings{}, fmt.Errorf("acquiring settings lock: %w", err)
	}
	if !locked {
		return types.Settings{}, errors.New("settings lock is held by another process")
	}
	defer func() { _ = s.flk.Unlock() }()

	cfg, err := s.load()
	if err != nil {
		return types.Settings{}, err
	}

	changed, err := fn(&cfg)
	if err != nil {
		return cfg, err
	}
	if !changed {
		return cfg, nil
	}
	if err := s.persist(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// load reads the document and merges it over the defaults.
func (s *Store) load() (types.Settings, error) {
	cfg := types.DefaultSettings()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.DefaultSettings(), fmt.Errorf("parsing settings: %w", err)
	}

	// Re-establish defaults for fields a hand-edited document may have
	// nulled out.
	if cfg.Projects == nil {
		cfg.Projects = []string{}
	}
	if cfg.HiddenProjects == nil {
		cfg.HiddenProjects = []string{}
	}
	if cfg.ProjectSettings == nil {
		cfg.ProjectSettings = map[string]types.ProjectSettings{}
	}
	return cfg, nil
}

// persist writes the document as pretty-printed JSON using the temp-file,
// rename pattern.
func (s *Store) persist(cfg types.Settings) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// listProjectDirs returns the project directory names under the drafts root,
// creating the root if absent.
func (s *Store) listProjectDirs() ([]string, error) {
	if err := os.MkdirAll(s.draftsRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating drafts root: %w", err)
	}
	entries, err := os.ReadDir(s.draftsRoot)
	if err != nil {
		return nil, fmt.Errorf("reading drafts root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// reconcile applies the directory listing to the document in place and
// reports whether anything changed.
func (s *Store) reconcile(cfg *types.Settings, dirs []string) bool {
	onDisk := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		onDisk[d] = true
	}

	changed := false

	// Prune project keys whose directory is gone.
	kept := cfg.Projects[:0]
	for _, p := range cfg.Projects {
		if onDisk[p] {
			kept = append(kept, p)
			continue
		}
		s.log.Info("pruning project with no directory", "project", p)
		delete(cfg.ProjectSettings, p)
		changed = true
	}
	cfg.Projects = kept

	keptHidden := cfg.HiddenProjects[:0]
	for _, p := range cfg.HiddenProjects {
		if onDisk[p] {
			keptHidden = append(keptHidden, p)
			continue
		}
		changed = true
	}
	cfg.HiddenProjects = keptHidden

	// Register externally-added directories.
	for _, d := range dirs {
		if cfg.HasProject(d) {
			continue
		}
		s.log.Info("registering project directory", "project", d)
		cfg.Projects = append(cfg.Projects, d)
		if _, ok := cfg.ProjectSettings[d]; !ok {
			cfg.ProjectSettings[d] = types.ProjectSettings{
				FunctionalAreas: []string{},
				Labels:          []string{},
				Collections:     []string{},
				Color:           palette[(len(cfg.Projects)-1)%len(palette)],
			}
		}
		changed = true
	}

	// Reassign the active project when it is hidden or gone. An empty
	// active project is a valid state and is left alone.
	if cfg.ActiveProject != "" && (!cfg.HasProject(cfg.ActiveProject) || cfg.IsHidden(cfg.ActiveProject)) {
		cfg.ActiveProject = cfg.FirstVisible()
		changed = true
	}
	return changed
}

// removeKey deletes key from the slice in place, reporting whether it was
// present.
func removeKey(keys *[]string, key string) bool {
	for i, k := range *keys {
		if k == key {
			*keys = append((*keys)[:i], (*keys)[i+1:]...)
			return true
		}
	}
	return false
}
