// Package store provides the SQLite-backed relational store for evidence,
// themes, theme/evidence links and personas, with in-process vector search.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row looked up by id does not exist.
var ErrNotFound = errors.New("not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS evidence (
	id                     TEXT PRIMARY KEY,
	account_id             TEXT NOT NULL,
	project_id             TEXT NOT NULL,
	verbatim               TEXT NOT NULL DEFAULT '',
	is_question            INTEGER,
	embedding              TEXT,
	embedding_model        TEXT,
	embedding_generated_at DATETIME,
	created_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_project ON evidence(project_id, created_at);

CREATE TABLE IF NOT EXISTS evidence_facet (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	evidence_id TEXT NOT NULL,
	project_id  TEXT,
	person_id   TEXT,
	kind_slug   TEXT,
	label       TEXT
);

CREATE INDEX IF NOT EXISTS idx_evidence_facet_evidence ON evidence_facet(evidence_id);
CREATE INDEX IF NOT EXISTS idx_evidence_facet_person ON evidence_facet(person_id);

CREATE TABLE IF NOT EXISTS themes (
	id                     TEXT PRIMARY KEY,
	account_id             TEXT NOT NULL,
	project_id             TEXT,
	name                   TEXT NOT NULL,
	statement              TEXT,
	inclusion_criteria     TEXT,
	exclusion_criteria     TEXT,
	synonyms               TEXT NOT NULL DEFAULT '[]',
	anti_examples          TEXT NOT NULL DEFAULT '[]',
	embedding              TEXT,
	embedding_model        TEXT,
	embedding_generated_at DATETIME,
	created_at             DATETIME NOT NULL,
	updated_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_themes_scope_name ON themes(account_id, project_id, name);

CREATE TABLE IF NOT EXISTS theme_evidence (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	project_id  TEXT,
	theme_id    TEXT NOT NULL REFERENCES themes(id),
	evidence_id TEXT NOT NULL,
	rationale   TEXT,
	confidence  REAL,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	UNIQUE(theme_id, evidence_id, account_id)
);

CREATE TABLE IF NOT EXISTS people (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS person_facet (
	person_id  TEXT NOT NULL,
	facet_id   INTEGER NOT NULL,
	project_id TEXT NOT NULL,
	kind_slug  TEXT NOT NULL,
	label      TEXT NOT NULL,
	UNIQUE(person_id, facet_id)
);

CREATE TABLE IF NOT EXISTS person_scale (
	person_id TEXT NOT NULL,
	kind_slug TEXT NOT NULL,
	score     REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS personas (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT 'core',
	name       TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS persona_people (
	persona_id TEXT NOT NULL REFERENCES personas(id),
	person_id  TEXT NOT NULL,
	UNIQUE(persona_id, person_id)
);
`

// execer is satisfied by both *sql.DB and *sql.Tx, so row writers can run
// standalone or inside an import transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB wraps a sql.DB with store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
