// Package index persists scanned table metadata in SQLite so repeated CLI
// invocations don't pay a full CSV scan when nothing changed on disk.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/cohort-cli/cohort/internal/paths"
)

// Database is the SQLite metadata index handle.
type Database struct {
	db *sql.DB
}

var (
	// ErrTableNotFound indicates the requested table is not in the index.
	ErrTableNotFound = errors.New("table not found in index")
	// ErrIndexLocked indicates another process is rebuilding the index.
	ErrIndexLocked = errors.New("index is locked for rebuild")
)

// CurrentDBVersion is the index schema version.
// v1: tables/columns/session_values/actions/meta
const CurrentDBVersion = 1

// DB returns the underlying sql.DB for advanced queries.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the index.
func (d *Database) Close() error {
	return d.db.Close()
}

// Open opens or creates the metadata index for a data directory.
func Open(dataDir string) (*Database, error) {
	dbDir := paths.IndexDir(dataDir)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dbDir, err)
	}
	return open(paths.IndexPath(dataDir))
}

// OpenInMemory opens an in-memory index (for testing).
func OpenInMemory() (*Database, error) {
	return open(":memory:")
}

func open(dsn string) (*Database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	d := &Database{db: db}
	if err := d.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenWithRebuild opens the index, recreating it when the stored schema
// version does not match the binary's. Returns (database, wasRebuilt, error).
func OpenWithRebuild(dataDir string) (*Database, bool, error) {
	dbPath := paths.IndexPath(dataDir)

	lock, err := acquireRebuildLock(paths.IndexDir(dataDir))
	if err != nil {
		return nil, false, err
	}
	defer lock.release()

	rebuilt := false
	if staleSchemaOnDisk(dbPath) {
		if err := discardIndexFiles(dbPath); err != nil {
			return nil, false, err
		}
		rebuilt = true
	}

	d, err := Open(dataDir)
	return d, rebuilt, err
}

// staleSchemaOnDisk reports whether an index exists at dbPath whose stored
// version differs from CurrentDBVersion. A version that cannot be read
// counts as stale; a missing file does not.
func staleSchemaOnDisk(dbPath string) bool {
	if _, err := os.Stat(dbPath); err != nil {
		return false
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return false
	}
	defer db.Close()

	var stored string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = 'db_version'").Scan(&stored); err != nil {
		return true
	}
	version, err := strconv.Atoi(stored)
	return err != nil || version != CurrentDBVersion
}

// discardIndexFiles deletes the index database along with its WAL sidecars.
func discardIndexFiles(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("discard %s: %w", p, err)
		}
	}
	return nil
}

// rebuildLock serializes index rebuilds across processes via an flock'd
// sentinel file next to the database.
type rebuildLock struct {
	file *os.File
}

func acquireRebuildLock(dbDir string) (*rebuildLock, error) {
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dbDir, err)
	}

	f, err := os.OpenFile(filepath.Join(dbDir, "index.lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open index lock: %w", err)
	}
	if err := flockTake(f); err != nil {
		f.Close()
		if errors.Is(err, ErrIndexLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	return &rebuildLock{file: f}, nil
}

func (l *rebuildLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := flockDrop(l.file)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

func (d *Database) ensureSchema() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tables (
			name TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			file_mtime INTEGER NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			scanned_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS columns (
			table_name TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			dtype TEXT NOT NULL,
			min_value REAL,
			max_value REAL,
			PRIMARY KEY (table_name, name)
		);
		CREATE INDEX IF NOT EXISTS idx_columns_position ON columns(table_name, position);

		CREATE TABLE IF NOT EXISTS session_values (
			value TEXT PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			action TEXT NOT NULL
		);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}

	// Stamp the version only on first creation so a stale stamp keeps
	// describing the schema actually on disk.
	_, err := d.db.Exec(
		"INSERT INTO meta (key, value) VALUES ('db_version', ?) ON CONFLICT(key) DO NOTHING",
		strconv.Itoa(CurrentDBVersion),
	)
	if err != nil {
		return fmt.Errorf("record index version: %w", err)
	}
	return nil
}
