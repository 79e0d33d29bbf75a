// Package store is the orchestrator's single embedded relational store,
// a thin database/sql wrapper over an embedded, cgo-free SQLite engine
// so the whole service runs as a single process with no external
// database.
//
// All mutating operations serialize through one process-wide writer
// mutex; read-only queries run unguarded, tolerating sqlite's own
// snapshot isolation. No network I/O ever happens while the mutex is
// held.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // load the embedded, cgo-free sqlite driver

	"github.com/relabs-tech/photoframe-orchestrator/internal/logging"
)

// DB is the orchestrator's database handle. writeMu serializes every
// mutating operation (device/next, override create/delete, config
// publish); readers use the same *sql.DB unguarded.
type DB struct {
	*sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the embedded database at
// <dataDir>/orchestrator.db and runs additive-only migrations.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "orchestrator.db")
	logging.Default().Infoln("opening embedded database:", path)

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite over database/sql serializes writers internally; cap the pool
	// so writers queue in the driver instead of failing with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(8)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// column describes one additive migration: a column that must exist on
// a table, with the DDL fragment to add it if absent.
type column struct {
	table, name, ddl string
}

// migrate creates every table if absent, then adds any column an older
// database version is missing. Poor man's database migrations: additive
// only, safe to run on every startup.
func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS device (
			device_id TEXT PRIMARY KEY,
			last_checkin_epoch INTEGER NOT NULL DEFAULT 0,
			next_wakeup_epoch INTEGER NOT NULL DEFAULT 0,
			sleep_seconds INTEGER NOT NULL DEFAULT 0,
			poll_interval_seconds INTEGER NOT NULL DEFAULT 3600,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_http_status INTEGER NOT NULL DEFAULT 0,
			fetch_ok INTEGER NOT NULL DEFAULT 0,
			image_changed INTEGER NOT NULL DEFAULT 0,
			image_source TEXT NOT NULL DEFAULT 'daily',
			last_error TEXT NOT NULL DEFAULT '',
			battery_mv INTEGER NOT NULL DEFAULT 0,
			battery_percent INTEGER NOT NULL DEFAULT 0,
			charging INTEGER NOT NULL DEFAULT -1,
			vbus_good INTEGER NOT NULL DEFAULT -1,
			reported_config_json TEXT NOT NULL DEFAULT '{}',
			reported_config_epoch INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS override (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			start_epoch INTEGER NOT NULL,
			end_epoch INTEGER NOT NULL,
			asset_name TEXT NOT NULL,
			asset_sha256 TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_epoch INTEGER NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_override_window ON override (start_epoch, end_epoch);`,
		`CREATE INDEX IF NOT EXISTS idx_override_device_window ON override (device_id, start_epoch, end_epoch);`,
		`CREATE TABLE IF NOT EXISTS publish_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			issued_epoch INTEGER NOT NULL,
			source TEXT NOT NULL,
			image_url TEXT NOT NULL,
			override_id INTEGER,
			poll_after_seconds INTEGER NOT NULL,
			valid_until_epoch INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_publish_history_device ON publish_history (device_id, issued_epoch);`,
		`CREATE TABLE IF NOT EXISTS device_config_plan (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			config_json TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_epoch INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_device_config_plan_device ON device_config_plan (device_id, id);`,
		`CREATE TABLE IF NOT EXISTS device_config_status (
			device_id TEXT PRIMARY KEY,
			last_query_epoch INTEGER NOT NULL DEFAULT 0,
			last_seen_version INTEGER NOT NULL DEFAULT 0,
			target_version INTEGER NOT NULL DEFAULT 0,
			last_apply_epoch INTEGER NOT NULL DEFAULT 0,
			applied_version INTEGER NOT NULL DEFAULT 0,
			apply_ok INTEGER NOT NULL DEFAULT 0,
			apply_error TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	// additive columns for restart-safe upgrades of pre-existing databases
	columns := []column{
		{"device", "battery_mv", "INTEGER NOT NULL DEFAULT 0"},
		{"device", "battery_percent", "INTEGER NOT NULL DEFAULT 0"},
		{"device", "charging", "INTEGER NOT NULL DEFAULT -1"},
		{"device", "vbus_good", "INTEGER NOT NULL DEFAULT -1"},
		{"device", "reported_config_json", "TEXT NOT NULL DEFAULT '{}'"},
		{"device", "reported_config_epoch", "INTEGER NOT NULL DEFAULT 0"},
	}
	for _, col := range columns {
		has, err := db.hasColumn(col.table, col.name)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		logging.Default().Infof("migrating: adding column %s.%s", col.table, col.name)
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", col.table, col.name, col.ddl)
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", col.table, col.name, err)
		}
	}
	return nil
}

func (db *DB) hasColumn(table, name string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Lock acquires the process-wide writer lock. Callers must defer Unlock
// and must not perform network I/O while holding it.
func (db *DB) Lock() { db.writeMu.Lock() }

// Unlock releases the process-wide writer lock.
func (db *DB) Unlock() { db.writeMu.Unlock() }
