// Package stylecache persists fetched CSL style definitions in a
// SQLite database so repeated conversions avoid the network.
//
// Build modes follow the rest of the project:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (-tags cgo_sqlite): mattn/go-sqlite3
package stylecache

import (
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

const schema = `
CREATE TABLE IF NOT EXISTS styles (
	hash       TEXT PRIMARY KEY,
	style_id   TEXT NOT NULL,
	xml        BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// DriverType identifies the underlying implementation, "purego" or
// "cgo".
func DriverType() string {
	return driverType
}

// Cache is a persistent style store. Safe for use from one process;
// SQLite serializes concurrent writers.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database inside dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, filepath.Join(dir, "styles.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Get returns the cached XML for a style id, reporting whether it was
// present.
func (c *Cache) Get(styleID string) ([]byte, bool, error) {
	var xml []byte
	err := c.db.QueryRow(`SELECT xml FROM styles WHERE hash = ?`, keyFor(styleID)).Scan(&xml)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return xml, true, nil
}

// Put stores or replaces the XML for a style id.
func (c *Cache) Put(styleID string, xml []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO styles (hash, style_id, xml, fetched_at) VALUES (?, ?, ?, ?)`,
		keyFor(styleID), styleID, xml, time.Now().Unix(),
	)
	return err
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// keyFor hashes a style id or URL into the primary key.
func keyFor(styleID string) string {
	sum := blake3.Sum256([]byte(styleID))
	return hex.EncodeToString(sum[:])
}
