package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS lookups (
    app_key TEXT PRIMARY KEY,
    app_name TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('ok', 'not_found', 'failed')),
    raw_json TEXT,
    attempts INTEGER DEFAULT 1,
    fetched_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS insight_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    track TEXT UNIQUE NOT NULL CHECK(track IN ('apps', 'd2c')),
    stats_json TEXT NOT NULL,
    insights_json TEXT NOT NULL,
    body_markdown TEXT NOT NULL,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    phase TEXT NOT NULL,
    summary TEXT NOT NULL,
    ran_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_lookups_status ON lookups(status);
CREATE INDEX IF NOT EXISTS idx_run_reports_phase ON run_reports(phase);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
