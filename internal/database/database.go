package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dataSourceName, "?") {
		sep = "&"
	}
	dsn := dataSourceName + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS servers (
		id TEXT NOT NULL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'other',
		status TEXT NOT NULL DEFAULT 'offline',
		cpu_usage REAL NOT NULL DEFAULT 0,
		memory_bytes INTEGER NOT NULL DEFAULT 0,
		memory_limit INTEGER NOT NULL DEFAULT 0,
		disk_bytes INTEGER NOT NULL DEFAULT 0,
		disk_limit INTEGER NOT NULL DEFAULT 0,
		network_rx INTEGER NOT NULL DEFAULT 0,
		network_tx INTEGER NOT NULL DEFAULT 0,
		uptime_ms INTEGER NOT NULL DEFAULT 0,
		player_count INTEGER, -- NULL when unknown
		query_address TEXT NOT NULL DEFAULT '',
		query_password TEXT NOT NULL DEFAULT '',
		last_activity_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resource_history (
		server_id TEXT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL,
		cpu_usage REAL NOT NULL,
		memory_bytes INTEGER NOT NULL,
		players INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_resource_history_server ON resource_history(server_id, timestamp);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		server_id TEXT, -- NULL for system-wide events, kept after server deletion
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_server ON events(server_id, created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS webhooks (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		event_types_json TEXT NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT NOT NULL PRIMARY KEY,
		server_id TEXT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		cron_expression TEXT NOT NULL,
		task_type TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_run_at DATETIME,
		next_run_at DATETIME,
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
