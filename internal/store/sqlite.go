package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/coach/internal/core"
)

// SQLite has no native date type; dates and timestamps are stored as text in
// layouts that sort lexically.
const (
	sqliteDateLayout = "2006-01-02"
	sqliteTimeLayout = "2006-01-02 15:04:05.000000000"
)

// SQLiteStore persists imports in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer at a time; readers share the WAL.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSchema creates the tables if they do not exist.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS swimmer (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		gender      TEXT NOT NULL DEFAULT '',
		birth_date  TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_swimmer_name ON swimmer(last_name, first_name);

	CREATE TABLE IF NOT EXISTS meet (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		start_date  TEXT NOT NULL,
		end_date    TEXT NOT NULL,
		course      TEXT NOT NULL CHECK (course IN ('SHORT', 'LONG'))
	);

	CREATE TABLE IF NOT EXISTS swimmer_time (
		swimmer        TEXT NOT NULL REFERENCES swimmer(id),
		meet           TEXT NOT NULL REFERENCES meet(id),
		style          TEXT NOT NULL,
		distance       INTEGER NOT NULL CHECK (distance > 0),
		course         TEXT NOT NULL,
		official_time  INTEGER NOT NULL DEFAULT 0,
		date_time      TEXT,
		dataset        TEXT NOT NULL,
		PRIMARY KEY (swimmer, meet, style, distance, course, dataset)
	);

	CREATE INDEX IF NOT EXISTS idx_swimmer_time_meet ON swimmer_time(meet, dataset);

	CREATE TABLE IF NOT EXISTS import_history (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		load_time     TEXT NOT NULL,
		meet          TEXT NOT NULL,
		dataset       TEXT NOT NULL,
		num_swimmers  INTEGER NOT NULL,
		num_entries   INTEGER NOT NULL,
		duration      INTEGER NOT NULL,
		swimmers      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_import_history_meet ON import_history(meet, dataset, load_time);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertSwimmer inserts a swimmer unless the id already exists.
func (s *SQLiteStore) UpsertSwimmer(ctx context.Context, sw core.Swimmer) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO swimmer (id, first_name, last_name, gender, birth_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		sw.ID, sw.FirstName, sw.LastName, sw.Gender, formatDate(sw.BirthDate),
	)
	if err != nil {
		return false, fmt.Errorf("insert swimmer %s: %w", sw.ID, err)
	}
	return inserted(res)
}

// UpsertSwimmerTime inserts a time unless its natural key already exists.
func (s *SQLiteStore) UpsertSwimmerTime(ctx context.Context, t core.SwimmerTime) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO swimmer_time (swimmer, meet, style, distance, course, official_time, date_time, dataset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (swimmer, meet, style, distance, course, dataset) DO NOTHING`,
		t.SwimmerID, t.MeetID, string(t.Style), t.Distance, string(t.Course), t.TimeMs, formatDate(t.TimeDate), string(t.Dataset),
	)
	if err != nil {
		return false, fmt.Errorf("insert swimmer time %s: %w", t.SwimmerID, err)
	}
	return inserted(res)
}

// FindSwimmersByName returns every swimmer with exactly this name.
func (s *SQLiteStore) FindSwimmersByName(ctx context.Context, firstName, lastName string) ([]core.Swimmer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, gender, birth_date
		FROM swimmer
		WHERE first_name = ? AND last_name = ?
		ORDER BY id`,
		firstName, lastName,
	)
	if err != nil {
		return nil, fmt.Errorf("query swimmers: %w", err)
	}
	defer rows.Close()

	var out []core.Swimmer
	for rows.Next() {
		var sw core.Swimmer
		var birth sql.NullString
		if err := rows.Scan(&sw.ID, &sw.FirstName, &sw.LastName, &sw.Gender, &birth); err != nil {
			return nil, fmt.Errorf("scan swimmer: %w", err)
		}
		if sw.BirthDate, err = parseDate(birth); err != nil {
			return nil, fmt.Errorf("swimmer %s birth date: %w", sw.ID, err)
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// FindMeet returns core.ErrMeetNotFound for unknown ids.
func (s *SQLiteStore) FindMeet(ctx context.Context, id string) (core.Meet, error) {
	var m core.Meet
	var start, end sql.NullString
	var course string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date, course
		FROM meet WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &start, &end, &course)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Meet{}, core.ErrMeetNotFound
	}
	if err != nil {
		return core.Meet{}, fmt.Errorf("query meet %s: %w", id, err)
	}
	if m.StartDate, err = parseDate(start); err != nil {
		return core.Meet{}, fmt.Errorf("meet %s start date: %w", id, err)
	}
	if m.EndDate, err = parseDate(end); err != nil {
		return core.Meet{}, fmt.Errorf("meet %s end date: %w", id, err)
	}
	m.Course = core.Course(course)
	return m, nil
}

// SaveMeet creates or replaces a meet.
func (s *SQLiteStore) SaveMeet(ctx context.Context, m core.Meet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meet (id, name, start_date, end_date, course)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			course = excluded.course`,
		m.ID, m.Name, formatDate(m.StartDate), formatDate(m.EndDate), string(m.Course),
	)
	if err != nil {
		return fmt.Errorf("save meet %s: %w", m.ID, err)
	}
	return nil
}

// AppendImportHistory inserts a ledger row and returns it with its id.
func (s *SQLiteStore) AppendImportHistory(ctx context.Context, h core.ImportHistory) (core.ImportHistory, error) {
	h.LoadTime = h.LoadTime.UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_history (load_time, meet, dataset, num_swimmers, num_entries, duration, swimmers)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.LoadTime.Format(sqliteTimeLayout), h.MeetID, string(h.Dataset), h.NumSwimmers, h.NumEntries, h.DurationMs, h.Swimmers,
	)
	if err != nil {
		return core.ImportHistory{}, fmt.Errorf("insert import history: %w", err)
	}
	if h.ID, err = res.LastInsertId(); err != nil {
		return core.ImportHistory{}, fmt.Errorf("import history id: %w", err)
	}
	return h, nil
}

// ImportHistory returns every ledger row for a meet, newest first.
func (s *SQLiteStore) ImportHistory(ctx context.Context, meetID string) ([]core.ImportHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM import_history
		WHERE meet = ?
		ORDER BY load_time DESC, id DESC`, meetID)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	return scanSQLiteHistory(rows)
}

// LatestImports returns the newest ledger row per dataset for a meet.
func (s *SQLiteStore) LatestImports(ctx context.Context, meetID string) ([]core.ImportHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM import_history h
		WHERE h.meet = ?
		  AND h.id = (
			SELECT id FROM import_history
			WHERE meet = h.meet AND dataset = h.dataset
			ORDER BY load_time DESC, id DESC
			LIMIT 1
		  )
		ORDER BY h.dataset`, meetID)
	if err != nil {
		return nil, fmt.Errorf("query latest imports: %w", err)
	}
	return scanSQLiteHistory(rows)
}

// MeetTimes lists the times loaded by the newest dataset import for a meet,
// in the meet's course.
func (s *SQLiteStore) MeetTimes(ctx context.Context, meetID string, dataset core.Dataset) ([]core.MeetTime, error) {
	var latest core.ImportHistory
	err := s.db.QueryRowContext(ctx, `
		SELECT swimmers FROM import_history
		WHERE meet = ? AND dataset = ?
		ORDER BY load_time DESC, id DESC
		LIMIT 1`, meetID, string(dataset),
	).Scan(&latest.Swimmers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest import: %w", err)
	}
	ids := latest.SwimmerIDs()
	if len(ids) == 0 {
		return nil, nil
	}

	args := []any{meetID, string(dataset)}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+meetTimeColumns+`
		FROM swimmer_time st
		JOIN swimmer s ON s.id = st.swimmer
		JOIN meet m ON m.id = st.meet AND m.course = st.course
		WHERE st.meet = ? AND st.dataset = ? AND st.swimmer IN (`+placeholders+`)
		ORDER BY s.first_name, s.last_name, st.style, st.distance, st.official_time`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query meet times: %w", err)
	}
	defer rows.Close()

	var out []core.MeetTime
	for rows.Next() {
		var t core.MeetTime
		var style, course, ds string
		var date sql.NullString
		if err := rows.Scan(&t.SwimmerID, &t.FirstName, &t.LastName, &t.MeetID, &style, &t.Distance, &course, &t.TimeMs, &date, &ds); err != nil {
			return nil, fmt.Errorf("scan meet time: %w", err)
		}
		if t.TimeDate, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("swimmer %s time date: %w", t.SwimmerID, err)
		}
		t.Style, t.Course, t.Dataset = core.Style(style), core.Course(course), core.Dataset(ds)
		out = append(out, t)
	}
	return out, rows.Err()
}

// MeetsWithResults lists meets other than except with a results import.
func (s *SQLiteStore) MeetsWithResults(ctx context.Context, except string) ([]core.Meet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.name, m.start_date, m.end_date, m.course
		FROM meet m
		WHERE m.id <> ?
		  AND EXISTS (
			SELECT 1 FROM import_history h
			WHERE h.meet = m.id AND h.dataset = ?
		  )
		ORDER BY m.start_date, m.id`, except, string(core.DatasetResults))
	if err != nil {
		return nil, fmt.Errorf("query meets with results: %w", err)
	}
	defer rows.Close()

	var out []core.Meet
	for rows.Next() {
		var m core.Meet
		var start, end sql.NullString
		var course string
		if err := rows.Scan(&m.ID, &m.Name, &start, &end, &course); err != nil {
			return nil, fmt.Errorf("scan meet: %w", err)
		}
		if m.StartDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("meet %s start date: %w", m.ID, err)
		}
		if m.EndDate, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("meet %s end date: %w", m.ID, err)
		}
		m.Course = core.Course(course)
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanSQLiteHistory(rows *sql.Rows) ([]core.ImportHistory, error) {
	defer rows.Close()

	var out []core.ImportHistory
	for rows.Next() {
		var h core.ImportHistory
		var loadTime, dataset string
		if err := rows.Scan(&h.ID, &loadTime, &h.MeetID, &dataset, &h.NumSwimmers, &h.NumEntries, &h.DurationMs, &h.Swimmers); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}
		t, err := time.ParseInLocation(sqliteTimeLayout, loadTime, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("import history %d load time: %w", h.ID, err)
		}
		h.LoadTime = t
		h.Dataset = core.Dataset(dataset)
		out = append(out, h)
	}
	return out, rows.Err()
}

func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(sqliteDateLayout)
}

func parseDate(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(sqliteDateLayout, v.String, time.UTC)
}
