// SQLite-backed locate index: a derived cache mapping draft id to file path
// so repeat lookups skip the directory scan. The JSON files stay the source
// of truth; the index file is deleted and rebuilt on every open, and a hit
// is always re-verified against the file before it is trusted.
package draftstore

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// indexSchema holds the single index table.
const indexSchema = `
CREATE TABLE IF NOT EXISTS draft_index (
	id   TEXT PRIMARY KEY,
	path TEXT NOT NULL
);
`

// locateIndex caches id → path resolutions in a throwaway SQLite database.
type locateIndex struct {
	db *sql.DB
}

// openLocateIndex opens the index database at dbPath. Any existing file is
// removed first so the schema is always fresh; the cache repopulates lazily
// from scans.
func openLocateIndex(dbPath string) (*locateIndex, error) {
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening locate index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing locate index schema: %w", err)
	}
	return &locateIndex{db: db}, nil
}

// get returns the cached path for id, if any.
func (ix *locateIndex) get(id string) (string, bool) {
	var path string
	err := ix.db.QueryRow("SELECT path FROM draft_index WHERE id = ?", id).Scan(&path)
	if err != nil {
		return "", false
	}
	return path, true
}

// put records or replaces the path for id.
func (ix *locateIndex) put(id, path string) {
	_, _ = ix.db.Exec(
		"INSERT INTO draft_index (id, path) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET path = excluded.path",
		id, path,
	)
}

// remove drops the entry for id.
func (ix *locateIndex) remove(id string) {
	_, _ = ix.db.Exec("DELETE FROM draft_index WHERE id = ?", id)
}

// reset empties the index.
func (ix *locateIndex) reset() {
	_, _ = ix.db.Exec("DELETE FROM draft_index")
}

// close releases the underlying database.
func (ix *locateIndex) close() error {
	return ix.db.Close()
}
