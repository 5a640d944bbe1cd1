// Package report writes the results of a check run to SQLite so CI jobs and
// other tools can query diagnostics and function signatures after the
// process exits. The engine never reads a report back.
package report

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for check-run reports.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the report tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              INTEGER PRIMARY KEY,
  workspace       TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  roots           INTEGER NOT NULL,
  files           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  document        TEXT NOT NULL,
  start_offset    INTEGER NOT NULL,
  end_offset      INTEGER NOT NULL,
  line            INTEGER,
  col             INTEGER,
  severity        TEXT NOT NULL,
  message         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signatures (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  name            TEXT NOT NULL,
  path            TEXT NOT NULL,
  document        TEXT NOT NULL,
  has_params      INTEGER NOT NULL,
  return_type     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signature_params (
  id              INTEGER PRIMARY KEY,
  signature_id    INTEGER NOT NULL REFERENCES signatures(id) ON DELETE CASCADE,
  position        INTEGER NOT NULL,
  name            TEXT NOT NULL,
  type            TEXT NOT NULL,
  optional        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_run ON diagnostics(run_id, document);
CREATE INDEX IF NOT EXISTS idx_signatures_run ON signatures(run_id, name);
CREATE INDEX IF NOT EXISTS idx_signature_params_sig ON signature_params(signature_id, position);
`
