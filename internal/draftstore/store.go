// Package draftstore persists test-case drafts as individual JSON files
// organized by project key and functional area. The directory tree is the
// source of truth; a draft's location is derived from its metadata, so
// rewriting a draft whose summary or project changed relocates the file and
// prunes directories left empty behind it.
package draftstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/xraydraft/pkg/types"
)

// Compile-time interface check: Store must implement types.DraftStore.
var _ types.DraftStore = (*Store)(nil)

// Store is a file-backed draft store rooted at a single directory
// (<data>/testCases). Safe for concurrent use within one process; there is
// no cross-process coordination, so two processes sharing a root race with
// last-writer-wins semantics.
type Store struct {
	mu   sync.RWMutex
	root string
	log  *slog.Logger
	idx  *locateIndex
}

// indexFileName is the throwaway SQLite cache next to the drafts root.
const indexFileName = "draft-index.db"

// New creates a Store rooted at root, creating the directory if needed.
// The locate index lives beside the root so it never shows up as a project
// directory. A nil logger falls back to slog.Default.
func New(root string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating drafts root: %w", err)
	}
	idx, err := openLocateIndex(filepath.Join(filepath.Dir(root), indexFileName))
	if err != nil {
		return nil, err
	}
	return &Store{root: root, log: log, idx: idx}, nil
}

// Root returns the drafts root directory.
func (s *Store) Root() string {
	return s.root
}

// Close releases the locate index.
func (s *Store) Close() error {
	return s.idx.close()
}

// Locate finds the draft with the given id. The index is consulted first;
// a hit is re-verified against the file and discarded when stale. Otherwise
// every project/area directory is scanned, filtering candidates by the
// eight-character id prefix embedded in file names before parsing.
// Returns types.ErrNotFound when no draft matches.
func (s *Store) Locate(id string) (*types.Draft, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, path, ok := s.locate(id)
	if !ok {
		return nil, "", types.ErrNotFound
	}
	return d, path, nil
}

// List returns drafts under one project, or all projects when projectKey is
// empty, sorted by UpdatedAt descending. Drafts without a timestamp sort as
// zero, i.e. last. Corrupt files are logged and skipped; one bad file never
// fails the listing.
func (s *Store) List(projectKey string) ([]*types.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drafts []*types.Draft
	if projectKey != "" {
		drafts = s.collectProject(filepath.Join(s.root, projectKey))
	} else {
		entries, err := os.ReadDir(s.root)
		if err != nil {
			return nil, fmt.Errorf("reading drafts root: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			drafts = append(drafts, s.collectProject(filepath.Join(s.root, e.Name()))...)
		}
	}

	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].UpdatedAt > drafts[j].UpdatedAt
	})
	return drafts, nil
}

// Write persists the draft at the path derived from its summary and project
// key. When a draft with the same id already lives at a different path the
// old file is removed first, along with any directories left empty up to
// (but not including) the drafts root. Returns the final path.
func (s *Store) Write(id string, draft *types.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return "", types.ErrMissingID
	}
	draft.ID = id
	if err := draft.Validate(); err != nil {
		return "", err
	}

	newPath := draftPath(s.root, draft)

	if _, oldPath, ok := s.locate(id); ok && oldPath != newPath {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("removing relocated draft: %w", err)
		}
		s.pruneEmptyDirs(filepath.Dir(oldPath))
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return "", fmt.Errorf("creating draft directory: %w", err)
	}
	if err := writeDraftFile(newPath, draft); err != nil {
		return "", err
	}

	s.idx.put(id, newPath)
	return newPath, nil
}

// Delete removes the draft with the given id and prunes now-empty parent
// directories. Returns false (not an error) when the id is unknown.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, path, ok := s.locate(id)
	if !ok {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing draft: %w", err)
	}
	s.pruneEmptyDirs(filepath.Dir(path))
	s.idx.remove(id)
	return true, nil
}

// DeleteAll removes every draft by recreating the drafts root. Irreversible.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("removing drafts root: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("recreating drafts root: %w", err)
	}
	s.idx.reset()
	return nil
}

// locate resolves id to a parsed draft and its path. Callers hold the lock.
func (s *Store) locate(id string) (*types.Draft, string, bool) {
	if id == "" {
		return nil, "", false
	}

	if path, ok := s.idx.get(id); ok {
		if d, err := readDraftFile(path); err == nil && d.ID == id {
			return d, path, true
		}
		s.idx.remove(id)
	}

	prefix := shortID(id)
	var (
		found     *types.Draft
		foundPath string
	)
	s.walkDraftFiles(func(path string, name string) bool {
		if !strings.Contains(name, prefix) {
			return true
		}
		d, err := readDraftFile(path)
		if err != nil {
			s.log.Warn("skipping unreadable draft file", "path", path, "error", err)
			return true
		}
		if d.ID != id {
			return true
		}
		found, foundPath = d, path
		return false
	})
	if found == nil {
		return nil, "", false
	}

	s.idx.put(id, foundPath)
	return found, foundPath, true
}

// collectProject parses every draft file under one project directory.
// A missing directory yields an empty result.
func (s *Store) collectProject(projectDir string) []*types.Draft {
	var drafts []*types.Draft
	areas, err := os.ReadDir(projectDir)
	if err != nil {
		return nil
	}
	for _, area := range areas {
		if !area.IsDir() {
			continue
		}
		areaDir := filepath.Join(projectDir, area.Name())
		files, err := os.ReadDir(areaDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(areaDir, f.Name())
			d, err := readDraftFile(path)
			if err != nil {
				s.log.Warn("skipping unreadable draft file", "path", path, "error", err)
				continue
			}
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// walkDraftFiles visits every .json file under root/project/area, passing
// the full path and base name. The visitor returns false to stop early.
func (s *Store) walkDraftFiles(visit func(path, name string) bool) {
	projects, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, p := range projects {
		if !p.IsDir() {
			continue
		}
		projectDir := filepath.Join(s.root, p.Name())
		areas, err := os.ReadDir(projectDir)
		if err != nil {
			continue
		}
		for _, a := range areas {
			if !a.IsDir() {
				continue
			}
			areaDir := filepath.Join(projectDir, a.Name())
			files, err := os.ReadDir(areaDir)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
					continue
				}
				if !visit(filepath.Join(areaDir, f.Name()), f.Name()) {
					return
				}
			}
		}
	}
}

// pruneEmptyDirs removes directories left empty after a relocation or
// delete, walking upward until a non-empty directory or the drafts root.
func (s *Store) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// readDraftFile reads and parses one draft file.
func readDraftFile(path string) (*types.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var d types.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &d, nil
}

// writeDraftFile serializes the draft as pretty-printed JSON using the
// temp-file, rename pattern. Drafts are a human-inspectable local store,
// not a performance path.
func writeDraftFile(path string, d *types.Draft) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".draft-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
