package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaState = `
CREATE TABLE IF NOT EXISTS duty_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    pin_off_hour INTEGER NOT NULL,
    weather_fetched_today BOOLEAN NOT NULL,
    current_cloud_cover REAL NOT NULL,
    last_pin_active BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaCycles = `
CREATE TABLE IF NOT EXISTS cycles (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    local_time TEXT NOT NULL,
    hour INTEGER NOT NULL,
    active BOOLEAN NOT NULL,
    fetch_outcome TEXT NOT NULL,
    cloud_cover REAL NOT NULL,
    pin_off_hour INTEGER NOT NULL,
    indicators INTEGER NOT NULL,
    sleep_s INTEGER NOT NULL
);
`

// OpenDB opens or creates a SQLite database file and ensures tables exist.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer; cycles are sequential anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaState, schemaCycles} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
