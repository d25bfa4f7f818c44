package database

import (
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{"create_instances_table", `CREATE TABLE IF NOT EXISTS instances (
		name TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},

	{"create_jobs_table", `CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		instance TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		commands TEXT NOT NULL,
		output TEXT,
		exit_code INTEGER,
		started_at DATETIME,
		finished_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},

	{"create_audit_logs_table", `CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		instance TEXT NOT NULL,
		job_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		details TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},

	{"create_rest_instances_table", `CREATE TABLE IF NOT EXISTS rest_instances (
		name TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`},

	{"index_jobs_instance", `CREATE INDEX IF NOT EXISTS idx_jobs_instance ON jobs(instance)`},
	{"index_jobs_status", `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`},
	{"index_jobs_created_at", `CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)`},
	{"index_audit_logs_instance", `CREATE INDEX IF NOT EXISTS idx_audit_logs_instance ON audit_logs(instance)`},
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		migration TEXT UNIQUE NOT NULL,
		batch INTEGER NOT NULL,
		ran_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func recordMigration(db *sql.DB, name string, batch int) error {
	_, err := db.Exec("INSERT INTO migrations (migration, batch) VALUES (?, ?)", name, batch)
	return err
}

func hasMigrationRun(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE migration = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func nextBatch(db *sql.DB) (int, error) {
	var batch sql.NullInt64
	if err := db.QueryRow("SELECT MAX(batch) FROM migrations").Scan(&batch); err != nil {
		return 0, err
	}
	return int(batch.Int64) + 1, nil
}

func runMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	batch, err := nextBatch(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		done, err := hasMigrationRun(db, m.name)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if err := recordMigration(db, m.name, batch); err != nil {
			return err
		}
	}
	return nil
}
