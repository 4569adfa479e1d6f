package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SchemaVersion is the database version written to PRAGMA user_version and
// carried in export documents.
const SchemaVersion = 2

var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrMissingID      = errors.New("missing id")
	ErrNotFound       = errors.New("not found")
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type Store struct {
	db          *sql.DB
	q           querier
	tx          *sql.Tx // set on stores handed out by WithTx
	initialized atomic.Bool
}

// Open opens (or creates) the SQLite database at dbPath. Init must be called
// before any other method.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}
	return &Store{db: db, q: db}, nil
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

// Init applies pending schema migrations. Calling it more than once is safe.
func (s *Store) Init() error {
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.initialized.Store(true)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ready() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// WithTx runs fn with a store bound to a single transaction. Everything fn
// writes is committed together, or rolled back when fn returns an error.
// Only the store passed to fn may be used until fn returns.
func (s *Store) WithTx(fn func(tx *Store) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	bound := &Store{db: s.db, q: tx, tx: tx}
	bound.initialized.Store(true)
	if err := fn(bound); err != nil {
		return err
	}
	return tx.Commit()
}

// txn is a transaction that may be nested in the one a WithTx store is bound
// to. A nested txn leaves commit and rollback to the outer one.
type txn struct {
	*sql.Tx
	nested bool
}

func (t txn) Commit() error {
	if t.nested {
		return nil
	}
	return t.Tx.Commit()
}

func (t txn) Rollback() error {
	if t.nested {
		return nil
	}
	return t.Tx.Rollback()
}

func (s *Store) begin() (txn, error) {
	if s.tx != nil {
		return txn{Tx: s.tx, nested: true}, nil
	}
	tx, err := s.db.Begin()
	return txn{Tx: tx}, err
}

// newID is the only place identifiers are allocated.
func newID() string {
	return uuid.NewString()
}

func (s *Store) migrate() error {
	var version int
	err := s.q.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= SchemaVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	_, err = s.q.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS categories (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		sort_order  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_categories_order ON categories(sort_order);

	CREATE TABLE IF NOT EXISTS activities (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		category        TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		external_system TEXT,
		sort_order      INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_category ON activities(category);
	CREATE INDEX IF NOT EXISTS idx_activities_order    ON activities(sort_order);

	CREATE TABLE IF NOT EXISTS time_entries (
		id          TEXT PRIMARY KEY,
		activity_id TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		duration    INTEGER,
		notes       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_activity ON time_entries(activity_id);
	CREATE INDEX IF NOT EXISTS idx_entries_start    ON time_entries(start_time);
	CREATE INDEX IF NOT EXISTS idx_entries_end      ON time_entries(end_time);

	CREATE TABLE IF NOT EXISTS goals (
		id                     TEXT PRIMARY KEY,
		activity_id            TEXT NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
		target_hours           REAL NOT NULL,
		period                 TEXT NOT NULL,
		notification_threshold INTEGER NOT NULL DEFAULT 80,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_activity ON goals(activity_id);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('max_tracking_duration',       '28800'),
		('warning_threshold',           '900'),
		('first_day_of_week',           'monday'),
		('goal_notification_threshold', '80'),
		('notifications_enabled',       'true'),
		('dark_mode',                   'false'),
		('stop_on_close',               'true'),
		('stop_on_tab_switch',          'false');
	`
	_, err := s.q.Exec(ddl)
	return err
}

func (s *Store) migrateV2() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS work_schedule (
		weekday    INTEGER PRIMARY KEY,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		enabled    INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS off_time (
		id         TEXT PRIMARY KEY,
		from_date  TEXT NOT NULL,
		to_date    TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT 'vacation',
		note       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_off_time_from ON off_time(from_date);

	CREATE TABLE IF NOT EXISTS cache_names (
		name       TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		cache_name TEXT NOT NULL REFERENCES cache_names(name) ON DELETE CASCADE,
		url        TEXT NOT NULL,
		status     INTEGER NOT NULL,
		header     TEXT NOT NULL DEFAULT '{}',
		body       BLOB,
		stored_at  TEXT NOT NULL,
		PRIMARY KEY (cache_name, url)
	);
	`
	_, err := s.q.Exec(ddl)
	return err
}

// ClearAllData deletes every row of the entity tables. Settings are left
// untouched.
func (s *Store) ClearAllData() error {
	if err := s.ready(); err != nil {
		return err
	}
	tx, err := s.begin()
	if err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"goals", "time_entries", "activities", "categories",
		"off_time", "work_schedule",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// DefaultDBPath returns ~/.config/worklog/worklog.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "worklog", "worklog.db"), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func int64Arg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func checkAffected(res sql.Result, what string, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
