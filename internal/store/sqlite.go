// Package store persists the agent collection in a local key-value store.
// SQLite, a directory of JSON files and process memory are supported backends.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/agentstudio/internal/logging"
)

// schema holds one statement per schema version; entry i upgrades a database
// at user_version i to i+1. Append only.
var schema = []string{
	`CREATE TABLE kv (
		key         TEXT PRIMARY KEY,
		value       BLOB NOT NULL,
		updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// DB is a SQLite database holding the kv table.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens or creates the database at path and upgrades its schema.
// ":memory:" gives a private in-memory database.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// One connection: SQLite has a single writer, and every ":memory:"
	// connection would otherwise be its own database.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, log: log.Sub("store")}
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db.log.Debug().Str("path", path).Int("schema", len(schema)).Msg("database opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) init() error {
	for _, p := range pragmas {
		if _, err := db.sql.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	version, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if version > len(schema) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(schema))
	}

	for v := version; v < len(schema); v++ {
		if err := db.upgrade(v); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) schemaVersion() (int, error) {
	var v int
	if err := db.sql.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// upgrade applies schema[from] and bumps user_version in one transaction.
func (db *DB) upgrade(from int) error {
	db.log.Debug().Int("from", from).Int("to", from+1).Msg("upgrading schema")

	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin schema upgrade %d: %w", from+1, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema[from]); err != nil {
		return fmt.Errorf("schema upgrade %d: %w", from+1, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", from+1)); err != nil {
		return fmt.Errorf("recording schema version %d: %w", from+1, err)
	}
	return tx.Commit()
}
