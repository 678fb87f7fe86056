package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// InitializeDatabase opens (or creates) the lab database and ensures the
// schema exists. The same file backs both the override store and the
// append-only query log, so manual decisions survive restarts.
func InitializeDatabase(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if err := createAllTables(db); err != nil {
		return nil, err
	}

	logging.Info("database initialized at %s", dbPath)
	return &SQLiteDB{db: db}, nil
}

// createAllTables creates all required database tables
func createAllTables(db *sql.DB) error {
	tables := []struct {
		name   string
		schema string
	}{
		{
			name: "overrides",
			schema: `CREATE TABLE IF NOT EXISTS overrides (
				domain TEXT PRIMARY KEY,
				state TEXT NOT NULL CHECK(state IN ('blocked', 'unblocked')),
				actor TEXT,
				updated_at TEXT NOT NULL
			)`,
		},
		{
			name: "query_log",
			schema: `CREATE TABLE IF NOT EXISTS query_log (
				id TEXT PRIMARY KEY,
				domain TEXT NOT NULL,
				features TEXT,
				model_label TEXT,
				model_confidence REAL DEFAULT 0,
				override_applied BOOLEAN DEFAULT 0,
				final_verdict TEXT NOT NULL,
				reason TEXT,
				origin TEXT,
				timestamp TEXT NOT NULL
			)`,
		},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.schema); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_query_log_timestamp ON query_log(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_query_log_domain ON query_log(domain)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}

	return nil
}
