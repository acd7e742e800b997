package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. Timestamps are
// stored as fixed-width UTC text so they sort chronologically.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS thread (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id   TEXT    NOT NULL UNIQUE,
		custom_json TEXT    NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS identity (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		token       TEXT    NOT NULL UNIQUE,
		created     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		custom_json TEXT    NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS comment (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id     INTEGER NOT NULL REFERENCES thread(id),
		parent_id     INTEGER REFERENCES comment(id),
		version_of_id INTEGER REFERENCES comment(id),
		identity_id   INTEGER REFERENCES identity(id),
		active        INTEGER NOT NULL DEFAULT 1,
		created       TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		modified      TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		text          TEXT    NOT NULL DEFAULT '',
		custom_json   TEXT    NOT NULL DEFAULT '{}'
	)`,

	`CREATE INDEX IF NOT EXISTS idx_comment_thread ON comment(thread_id, created, id)`,

	`CREATE INDEX IF NOT EXISTS idx_comment_identity ON comment(identity_id)`,

	`CREATE TABLE IF NOT EXISTS identity_comment (
		identity_id INTEGER NOT NULL REFERENCES identity(id),
		comment_id  INTEGER NOT NULL REFERENCES comment(id),
		rel_type    TEXT    NOT NULL,
		created     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (identity_id, comment_id, rel_type)
	)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
