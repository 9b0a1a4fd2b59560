package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/coach/internal/config"
	"github.com/JonMunkholm/coach/internal/core"
)

// PostgresStore persists imports in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens and pings a connection pool sized from cfg.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	// config.Validate bounds both sizes well inside int32
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSchema creates the tables if they do not exist.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS swimmer (
		id          TEXT PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		gender      TEXT NOT NULL DEFAULT '',
		birth_date  DATE
	);

	CREATE INDEX IF NOT EXISTS idx_swimmer_name ON swimmer(last_name, first_name);

	CREATE TABLE IF NOT EXISTS meet (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		start_date  DATE NOT NULL,
		end_date    DATE NOT NULL,
		course      TEXT NOT NULL CHECK (course IN ('SHORT', 'LONG'))
	);

	CREATE TABLE IF NOT EXISTS swimmer_time (
		swimmer        TEXT NOT NULL REFERENCES swimmer(id),
		meet           TEXT NOT NULL REFERENCES meet(id),
		style          TEXT NOT NULL,
		distance       INTEGER NOT NULL CHECK (distance > 0),
		course         TEXT NOT NULL,
		official_time  INTEGER NOT NULL DEFAULT 0,
		date_time      DATE,
		dataset        TEXT NOT NULL,
		PRIMARY KEY (swimmer, meet, style, distance, course, dataset)
	);

	CREATE INDEX IF NOT EXISTS idx_swimmer_time_meet ON swimmer_time(meet, dataset);

	CREATE TABLE IF NOT EXISTS import_history (
		id            BIGSERIAL PRIMARY KEY,
		load_time     TIMESTAMPTZ NOT NULL,
		meet          TEXT NOT NULL,
		dataset       TEXT NOT NULL,
		num_swimmers  INTEGER NOT NULL,
		num_entries   INTEGER NOT NULL,
		duration      BIGINT NOT NULL,
		swimmers      TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_import_history_meet ON import_history(meet, dataset, load_time DESC);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertSwimmer inserts a swimmer unless the id already exists.
func (s *PostgresStore) UpsertSwimmer(ctx context.Context, sw core.Swimmer) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO swimmer (id, first_name, last_name, gender, birth_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		sw.ID, sw.FirstName, sw.LastName, sw.Gender, nullDate(sw.BirthDate),
	)
	if err != nil {
		return false, fmt.Errorf("insert swimmer %s: %w", sw.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertSwimmerTime inserts a time unless its natural key already exists.
func (s *PostgresStore) UpsertSwimmerTime(ctx context.Context, t core.SwimmerTime) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO swimmer_time (swimmer, meet, style, distance, course, official_time, date_time, dataset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (swimmer, meet, style, distance, course, dataset) DO NOTHING`,
		t.SwimmerID, t.MeetID, string(t.Style), t.Distance, string(t.Course), t.TimeMs, nullDate(t.TimeDate), string(t.Dataset),
	)
	if err != nil {
		return false, fmt.Errorf("insert swimmer time %s: %w", t.SwimmerID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindSwimmersByName returns every swimmer with exactly this name.
func (s *PostgresStore) FindSwimmersByName(ctx context.Context, firstName, lastName string) ([]core.Swimmer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, gender, birth_date
		FROM swimmer
		WHERE first_name = $1 AND last_name = $2
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
		var birth *time.Time
		if err := rows.Scan(&sw.ID, &sw.FirstName, &sw.LastName, &sw.Gender, &birth); err != nil {
			return nil, fmt.Errorf("scan swimmer: %w", err)
		}
		if birth != nil {
			sw.BirthDate = *birth
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// FindMeet returns core.ErrMeetNotFound for unknown ids.
func (s *PostgresStore) FindMeet(ctx context.Context, id string) (core.Meet, error) {
	var m core.Meet
	var course string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, course
		FROM meet WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.StartDate, &m.EndDate, &course)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Meet{}, core.ErrMeetNotFound
	}
	if err != nil {
		return core.Meet{}, fmt.Errorf("query meet %s: %w", id, err)
	}
	m.Course = core.Course(course)
	return m, nil
}

// SaveMeet creates or replaces a meet. Meets are managed outside imports.
func (s *PostgresStore) SaveMeet(ctx context.Context, m core.Meet) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meet (id, name, start_date, end_date, course)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			course = EXCLUDED.course`,
		m.ID, m.Name, m.StartDate, m.EndDate, string(m.Course),
	)
	if err != nil {
		return fmt.Errorf("save meet %s: %w", m.ID, err)
	}
	return nil
}

// AppendImportHistory inserts a ledger row and returns it with its id.
func (s *PostgresStore) AppendImportHistory(ctx context.Context, h core.ImportHistory) (core.ImportHistory, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO import_history (load_time, meet, dataset, num_swimmers, num_entries, duration, swimmers)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		h.LoadTime, h.MeetID, string(h.Dataset), h.NumSwimmers, h.NumEntries, h.DurationMs, h.Swimmers,
	).Scan(&h.ID)
	if err != nil {
		return core.ImportHistory{}, fmt.Errorf("insert import history: %w", err)
	}
	return h, nil
}

const historyColumns = `id, load_time, meet, dataset, num_swimmers, num_entries, duration, swimmers`

const meetTimeColumns = `st.swimmer, s.first_name, s.last_name, st.meet, st.style, st.distance,
		st.course, st.official_time, st.date_time, st.dataset`

// ImportHistory returns every ledger row for a meet, newest first.
func (s *PostgresStore) ImportHistory(ctx context.Context, meetID string) ([]core.ImportHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+historyColumns+`
		FROM import_history
		WHERE meet = $1
		ORDER BY load_time DESC, id DESC`, meetID)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	return collectHistory(rows)
}

// LatestImports returns the newest ledger row per dataset for a meet.
func (s *PostgresStore) LatestImports(ctx context.Context, meetID string) ([]core.ImportHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (dataset) `+historyColumns+`
		FROM import_history
		WHERE meet = $1
		ORDER BY dataset, load_time DESC, id DESC`, meetID)
	if err != nil {
		return nil, fmt.Errorf("query latest imports: %w", err)
	}
	return collectHistory(rows)
}

// MeetTimes lists the times loaded by the newest dataset import for a meet,
// in the meet's course.
func (s *PostgresStore) MeetTimes(ctx context.Context, meetID string, dataset core.Dataset) ([]core.MeetTime, error) {
	var latest core.ImportHistory
	err := s.pool.QueryRow(ctx, `
		SELECT swimmers FROM import_history
		WHERE meet = $1 AND dataset = $2
		ORDER BY load_time DESC, id DESC
		LIMIT 1`, meetID, string(dataset),
	).Scan(&latest.Swimmers)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest import: %w", err)
	}
	ids := latest.SwimmerIDs()
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+meetTimeColumns+`
		FROM swimmer_time st
		JOIN swimmer s ON s.id = st.swimmer
		JOIN meet m ON m.id = st.meet AND m.course = st.course
		WHERE st.meet = $1 AND st.dataset = $2 AND st.swimmer = ANY($3)
		ORDER BY s.first_name, s.last_name, st.style, st.distance, st.official_time`,
		meetID, string(dataset), ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query meet times: %w", err)
	}
	defer rows.Close()

	var out []core.MeetTime
	for rows.Next() {
		var t core.MeetTime
		var style, course, ds string
		var date *time.Time
		if err := rows.Scan(&t.SwimmerID, &t.FirstName, &t.LastName, &t.MeetID, &style, &t.Distance, &course, &t.TimeMs, &date, &ds); err != nil {
			return nil, fmt.Errorf("scan meet time: %w", err)
		}
		t.Style, t.Course, t.Dataset = core.Style(style), core.Course(course), core.Dataset(ds)
		if date != nil {
			t.TimeDate = *date
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MeetsWithResults lists meets other than except with a results import.
func (s *PostgresStore) MeetsWithResults(ctx context.Context, except string) ([]core.Meet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.name, m.start_date, m.end_date, m.course
		FROM meet m
		WHERE m.id <> $1
		  AND EXISTS (
			SELECT 1 FROM import_history h
			WHERE h.meet = m.id AND h.dataset = $2
		  )
		ORDER BY m.start_date, m.id`, except, string(core.DatasetResults))
	if err != nil {
		return nil, fmt.Errorf("query meets with results: %w", err)
	}
	defer rows.Close()

	var out []core.Meet
	for rows.Next() {
		var m core.Meet
		var course string
		if err := rows.Scan(&m.ID, &m.Name, &m.StartDate, &m.EndDate, &course); err != nil {
			return nil, fmt.Errorf("scan meet: %w", err)
		}
		m.Course = core.Course(course)
		out = append(out, m)
	}
	return out, rows.Err()
}

func collectHistory(rows pgx.Rows) ([]core.ImportHistory, error) {
	defer rows.Close()

	var out []core.ImportHistory
	for rows.Next() {
		var h core.ImportHistory
		var dataset string
		if err := rows.Scan(&h.ID, &h.LoadTime, &h.MeetID, &dataset, &h.NumSwimmers, &h.NumEntries, &h.DurationMs, &h.Swimmers); err != nil {
			return nil, fmt.Errorf("scan import history: %w", err)
		}
		h.Dataset = core.Dataset(dataset)
		h.LoadTime = h.LoadTime.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// nullDate maps the zero time to SQL NULL.
func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
