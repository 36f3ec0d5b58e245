package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// created_at holds unix milliseconds so aggregates stay numeric.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS turns (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	intent     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveTurn(ctx context.Context, t Turn) (*Turn, error) {
	if err := validateTurn(t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, role, content, intent, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Role, t.Content, t.Intent, t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert turn")
	}
	return &t, nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, intent, created_at FROM turns WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list turns")
	}
	defer rows.Close() //nolint:errcheck

	var turns []Turn
	for rows.Next() {
		var (
			t  Turn
			ms int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.Intent, &ms); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan turn")
		}
		t.CreatedAt = time.UnixMilli(ms).UTC()
		turns = append(turns, t)
	}
	return turns, eris.Wrap(rows.Err(), "sqlite: iterate turns")
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		 FROM turns GROUP BY session_id ORDER BY MAX(seq) DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close() //nolint:errcheck

	var out []SessionSummary
	for rows.Next() {
		var (
			ss          SessionSummary
			first, last int64
		)
		if err := rows.Scan(&ss.ID, &ss.Turns, &first, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		ss.StartedAt = time.UnixMilli(first).UTC()
		ss.LastAt = time.UnixMilli(last).UTC()
		out = append(out, ss)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sessions")
}
