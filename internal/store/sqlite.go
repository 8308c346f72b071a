package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/cloudcover-switch/internal/logic"
)

// SQLite stores state in a single row (id = 1) of a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite wraps an open database. The schema must already exist.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// OpenSQLite opens the database file at path and prepares the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(db), nil
}

const (
	stateRowID = 1

	upsertStateSQL = `
		INSERT INTO duty_state (id, pin_off_hour, weather_fetched_today, current_cloud_cover, last_pin_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pin_off_hour=excluded.pin_off_hour,
			weather_fetched_today=excluded.weather_fetched_today,
			current_cloud_cover=excluded.current_cloud_cover,
			last_pin_active=excluded.last_pin_active,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT pin_off_hour, weather_fetched_today, current_cloud_cover, last_pin_active
		FROM duty_state WHERE id=?
	`

	insertCycleSQL = `
		INSERT INTO cycles (id, started_at, local_time, hour, active, fetch_outcome, cloud_cover, pin_off_hour, indicators, sleep_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectCyclesSQL = `
		SELECT id, started_at, local_time, hour, active, fetch_outcome, cloud_cover, pin_off_hour, indicators, sleep_s
		FROM cycles ORDER BY rowid DESC LIMIT ?
	`

	// Keep roughly a month of hourly cycles.
	maxCycles = 24 * 31

	pruneCyclesSQL = `
		DELETE FROM cycles WHERE id NOT IN (
			SELECT id FROM cycles ORDER BY rowid DESC LIMIT ?
		)
	`
)

// Load fetches the state row. A missing row is a cold boot, not an error.
func (s *SQLite) Load(ctx context.Context) (logic.PersistentState, bool, error) {
	row := s.db.QueryRowContext(ctx, selectStateSQL, stateRowID)

	var st logic.PersistentState
	if err := row.Scan(
		&st.PinOffHour,
		&st.WeatherFetchedToday,
		&st.CurrentCloudCover,
		&st.LastPinActive,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return logic.DefaultState(), false, nil
		}
		return logic.PersistentState{}, false, fmt.Errorf("load state: %w", err)
	}
	return st, true, nil
}

// Save upserts the state row.
func (s *SQLite) Save(ctx context.Context, st logic.PersistentState) error {
	_, err := s.db.ExecContext(ctx, upsertStateSQL,
		stateRowID,
		st.PinOffHour,
		st.WeatherFetchedToday,
		st.CurrentCloudCover,
		st.LastPinActive,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// AppendCycle inserts a cycle record and prunes old ones in one transaction.
func (s *SQLite) AppendCycle(ctx context.Context, rec CycleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, insertCycleSQL,
		rec.ID,
		rec.StartedAt.UTC(),
		rec.LocalTime,
		rec.Hour,
		rec.Active,
		rec.Fetch,
		rec.CloudCover,
		rec.PinOffHour,
		rec.Indicators,
		rec.SleepSeconds,
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	if _, err := tx.ExecContext(ctx, pruneCyclesSQL, maxCycles); err != nil {
		return fmt.Errorf("prune cycles: %w", err)
	}
	return tx.Commit()
}

// RecentCycles returns up to n cycle records in reverse insertion order, so
// a clock stepped backwards does not reorder history.
func (s *SQLite) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCyclesSQL, n)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var r CycleRecord
		if err := rows.Scan(
			&r.ID,
			&r.StartedAt,
			&r.LocalTime,
			&r.Hour,
			&r.Active,
			&r.Fetch,
			&r.CloudCover,
			&r.PinOffHour,
			&r.Indicators,
			&r.SleepSeconds,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		r.StartedAt = r.StartedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
