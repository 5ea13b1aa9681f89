// Package state provides SQLite-backed persistence for orders, agents,
// tasks, status history, deliveries and notification intents.
// The default location is the project-local database (.fulfiller/state.db).
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	// DriverModernc is the pure-Go SQLite driver (modernc.org/sqlite).
	DriverModernc = "sqlite"
	// DriverCGO is the cgo SQLite driver (github.com/mattn/go-sqlite3).
	DriverCGO = "sqlite3"
)

var (
	// ErrStaleStatus is returned when a conditional status write finds a
	// different status than the caller expected.
	ErrStaleStatus = errors.New("stale order status")
	// ErrAgentAtCapacity is returned when a load increment would exceed max load
	// or the agent is inactive.
	ErrAgentAtCapacity = errors.New("agent at capacity")
	// ErrNotFound is returned by writes that target a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrTaskFinal is returned when a write targets a COMPLETED or FAILED task.
	ErrTaskFinal = errors.New("task already finished")
)

// DB wraps an SQLite database connection with fulfillment-specific operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".fulfiller", "state.db")
}

// Open opens an SQLite database at the given path using the pure-Go driver.
func Open(path string) (*DB, error) {
	return OpenWithDriver(DriverModernc, path)
}

// OpenWithDriver opens an SQLite database with the named driver.
// It creates the parent directories if they don't exist.
// WAL mode is enabled and the pool is pinned to one connection so that
// per-connection pragmas hold and writers never race each other.
func OpenWithDriver(driver, path string) (*DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCGO:
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []struct {
		stmt string
		desc string
	}{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p.desc, err)
		}
	}

	return &DB{
		conn:   conn,
		path:   path,
		driver: driver,
	}, nil
}

// exists reports whether table has a row with the given id.
func (db *DB) exists(table, id string) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Agents},
		{2, migrationV2Orders},
		{3, migrationV3Tasks},
		{4, migrationV4Deliveries},
		{5, migrationV5Notifications},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Agents = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'AVAILABLE',
	current_load INTEGER NOT NULL DEFAULT 0 CHECK (current_load >= 0),
	max_load INTEGER NOT NULL CHECK (max_load > 0),
	model TEXT NOT NULL DEFAULT '',
	config TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	CHECK (current_load <= max_load)
);

CREATE INDEX IF NOT EXISTS idx_agents_type ON agents(type, active);

CREATE TABLE IF NOT EXISTS client_agents (
	client_id TEXT NOT NULL,
	agent_type TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	PRIMARY KEY (client_id, agent_type),
	FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
);
`

const migrationV2Orders = `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	requirements TEXT,
	status TEXT NOT NULL DEFAULT 'PENDING',
	assigned_agent_id TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS status_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	order_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (order_id) REFERENCES orders(id)
);

CREATE INDEX IF NOT EXISTS idx_status_history_order ON status_history(order_id, seq);
`

const migrationV3Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	input TEXT,
	status TEXT NOT NULL DEFAULT 'PENDING',
	output TEXT,
	error TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME,
	completed_at DATETIME,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (order_id) REFERENCES orders(id),
	CHECK (retry_count <= max_retries)
);

CREATE INDEX IF NOT EXISTS idx_tasks_order ON tasks(order_id, sequence);
`

const migrationV4Deliveries = `
CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	status TEXT NOT NULL,
	delivered_at DATETIME NOT NULL,
	FOREIGN KEY (order_id) REFERENCES orders(id)
);

CREATE INDEX IF NOT EXISTS idx_deliveries_order ON deliveries(order_id, status);
`

const migrationV5Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL,
	client_id TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_order ON notifications(order_id);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
// fn must only use tx; calling back into db would deadlock.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableTime formats an optional time for storage.
func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// nullableString returns the string pointer or nil for empty values.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
