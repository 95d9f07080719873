// Package mirror keeps a local, queryable copy of every audit entry in
// SQLite. The remote audit sheet is the system of record; the mirror exists
// so operators can filter findings without round-tripping to the grid API.
package mirror

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates or opens the mirror database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening mirror database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mirror database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running mirror migrations: %w", err)
	}
	return store, nil
}

// OpenMemory creates an in-memory mirror (useful for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory mirror: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running mirror migrations: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    sheet_id INTEGER NOT NULL,
    sheet_name TEXT NOT NULL DEFAULT '',
    row_id INTEGER NOT NULL,
    row_ref TEXT NOT NULL DEFAULT '',
    field TEXT NOT NULL,
    old_raw TEXT NOT NULL DEFAULT '',
    new_raw TEXT NOT NULL DEFAULT '',
    old_value REAL,
    new_value REAL,
    delta REAL,
    actor TEXT NOT NULL DEFAULT '',
    changed_at DATETIME NOT NULL,
    period_end DATETIME NOT NULL,
    audited_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_changed_at ON audit_entries(changed_at);
CREATE INDEX IF NOT EXISTS idx_audit_entries_sheet ON audit_entries(sheet_id);
CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries(actor);
`
