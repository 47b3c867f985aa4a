package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the Analysis Store. The same SQL runs on sqlite and postgres;
// queries are written with ? placeholders and rebound for postgres.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if strings.TrimSpace(dsn) == "" {
			dsn = filepath.Join("data", "call-intel.db")
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if s.driver == DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
		}
		for _, p := range pragmas {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("apply pragma %q: %w", p, err)
			}
		}
	}

	tables := []struct{ name, ddl string }{
		{"call_recordings", `
			CREATE TABLE IF NOT EXISTS call_recordings (
				id TEXT PRIMARY KEY,
				call_id TEXT NOT NULL UNIQUE,
				recording_id TEXT NOT NULL DEFAULT '',
				media_uri TEXT NOT NULL DEFAULT '',
				duration_sec INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
		{"call_contexts", `
			CREATE TABLE IF NOT EXISTS call_contexts (
				call_id TEXT PRIMARY KEY,
				contact_id TEXT,
				practice_id TEXT,
				user_id TEXT
			)`},
		{"call_analyses", `
			CREATE TABLE IF NOT EXISTS call_analyses (
				call_id TEXT PRIMARY KEY,
				id TEXT NOT NULL,
				rep_id TEXT NOT NULL DEFAULT '',
				quality DOUBLE PRECISION NOT NULL,
				win_probability INTEGER NOT NULL,
				body TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`},
		{"transcript_segments", `
			CREATE TABLE IF NOT EXISTS transcript_segments (
				call_id TEXT NOT NULL,
				idx INTEGER NOT NULL,
				ts TEXT NOT NULL,
				speaker TEXT NOT NULL,
				role TEXT NOT NULL,
				text TEXT NOT NULL,
				start_offset DOUBLE PRECISION NOT NULL,
				end_offset DOUBLE PRECISION NOT NULL,
				sentiment TEXT NOT NULL,
				PRIMARY KEY (call_id, idx),
				FOREIGN KEY (call_id) REFERENCES call_analyses(call_id) ON DELETE CASCADE
			)`},
		{"coaching_sessions", `
			CREATE TABLE IF NOT EXISTS coaching_sessions (
				id TEXT PRIMARY KEY,
				call_id TEXT NOT NULL,
				rep_id TEXT NOT NULL,
				score DOUBLE PRECISION NOT NULL,
				status TEXT NOT NULL,
				body TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`},
	}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", t.name, err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_call_analyses_rep ON call_analyses(rep_id, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_coaching_sessions_rep ON coaching_sessions(rep_id, created_at)",
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Driver() string { return s.driver }

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
