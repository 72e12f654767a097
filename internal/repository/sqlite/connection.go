package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Schema creates the versioning tables. It mirrors the Postgres schema:
// the same check constraints, partial unique index and ON DELETE SET NULL
// foreign keys, so both backends honour the same cascade rules.
const Schema = `
CREATE TABLE IF NOT EXISTS families (
	id TEXT PRIMARY KEY,
	name TEXT,
	description TEXT,
	head_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
	owner_id TEXT NOT NULL,
	last_allocated_version INTEGER NOT NULL DEFAULT 0 CHECK (last_allocated_version >= 0),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '{}',
	family_id TEXT REFERENCES families(id) ON DELETE SET NULL,
	version_number INTEGER,
	parent_id TEXT REFERENCES entities(id) ON DELETE SET NULL,
	version_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CONSTRAINT entities_version_positive CHECK (version_number IS NULL OR version_number > 0),
	CONSTRAINT entities_family_version_paired CHECK ((family_id IS NULL) = (version_number IS NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS entities_family_version_key
	ON entities(family_id, version_number) WHERE family_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_entities_parent_id ON entities(parent_id) WHERE parent_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_entities_owner ON entities(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_families_owner ON families(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_families_head_id ON families(head_id) WHERE head_id IS NOT NULL;
`

// Open opens a SQLite database and configures it for the versioning store.
//
// SQLite has a single writer, so the pool is limited to one connection:
// a transaction holds the whole database, which is the row lock the
// allocator relies on.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return db, nil
}

// Migrate creates the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Drop removes the versioning tables
func Drop(ctx context.Context, db *sql.DB) error {
	// families.head_id references entities, so break the cycle first
	stmts := []string{
		"PRAGMA foreign_keys=OFF",
		"DROP TABLE IF EXISTS entities",
		"DROP TABLE IF EXISTS families",
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
