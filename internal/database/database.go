// Package database provides SQLite database access and migration management.
package database

import (
	"database/sql"
	"os"
	"path/filepath"

	// SQLite driver for database/sql
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB connection with additional functionality.
type DB struct {
	*sql.DB
}

// New opens the database at dbPath, creating its parent directory. The path
// ":memory:" opens a private in-memory database.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection also keeps an in-memory
	// database shared by every caller.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// Migrate runs all pending database migrations.
func (db *DB) Migrate() error {
	return runMigrations(db.DB)
}
