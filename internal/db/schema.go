package db

import (
	"database/sql"
	"fmt"
	"os"
)

const classesTableDDL = `
CREATE TABLE IF NOT EXISTS classes (
    id INTEGER PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    label INTEGER NOT NULL,
    source_dir TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    expected INTEGER NOT NULL
);
`

const itemsTableDDL = `
CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY,
    class_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    output TEXT NOT NULL,
    status INTEGER NOT NULL,
    reason TEXT NOT NULL,
    format TEXT NOT NULL,
    src_w INTEGER NOT NULL,
    src_h INTEGER NOT NULL,
    alpha INTEGER NOT NULL,
    bytes INTEGER NOT NULL,
    duration_us INTEGER NOT NULL
);
`

const classSummariesTableDDL = `
CREATE TABLE IF NOT EXISTS class_summaries (
    class_id INTEGER PRIMARY KEY,
    total INTEGER NOT NULL,
    ok INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    bytes INTEGER NOT NULL
);
`

const runMetaTableDDL = `
CREATE TABLE IF NOT EXISTS run_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    input_dir TEXT NOT NULL,
    output_dir TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    prefix TEXT NOT NULL,
    on_error TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    class_count INTEGER DEFAULT 0,
    item_count INTEGER DEFAULT 0,
    ok_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    total_bytes INTEGER DEFAULT 0
);
`

const runErrorsTableDDL = `
CREATE TABLE IF NOT EXISTS run_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    message TEXT NOT NULL
);
`

const classesNameIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_classes_name ON classes(name);`
const itemsClassNameIndexDDL = `CREATE INDEX IF NOT EXISTS idx_items_class_name ON items(class_id, name);`
const itemsClassBytesIndexDDL = `CREATE INDEX IF NOT EXISTS idx_items_class_bytes ON items(class_id, bytes DESC);`
const itemsStatusIndexDDL = `CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	ddls := []string{
		classesTableDDL,
		itemsTableDDL,
		classSummariesTableDDL,
		runMetaTableDDL,
		runErrorsTableDDL,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// ApplyWritePragmas configures SQLite for fast writes while a run records.
func ApplyWritePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyReadPragmas configures SQLite for read-only browsing.
func ApplyReadPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA query_only = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyIndexPragmas points SQLite temp files at tmpDir for index builds.
// An empty tmpDir keeps them in memory.
func ApplyIndexPragmas(db *sql.DB, tmpDir string) error {
	pragma := "PRAGMA temp_store = MEMORY"
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite temp dir: %w", err)
		}
		if err := os.Setenv("SQLITE_TMPDIR", tmpDir); err != nil {
			return fmt.Errorf("failed to set SQLITE_TMPDIR: %w", err)
		}
		pragma = "PRAGMA temp_store = FILE"
	}
	if _, err := db.Exec(pragma); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}
	return nil
}

// BuildIndexes creates indexes after the run has been recorded.
func BuildIndexes(db *sql.DB) error {
	indexes := []string{
		classesNameIndexDDL,
		itemsClassNameIndexDDL,
		itemsClassBytesIndexDDL,
		itemsStatusIndexDDL,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Finalize prepares the database for read-only access.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}

	// Switch from WAL to DELETE so the manifest is a single file
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	return nil
}
