package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

const stateDBFileName = "state.sqlite"

// SQLiteKV persists values in a local SQLite db, partitioned by session id.
//
// Several processes may share one db (e.g. the TUI and scripted CLI calls);
// identical session ids see each other's writes, like two tabs of one browser session.
type SQLiteKV struct {
	db      *sql.DB
	session string
}

// DefaultStateDBPath returns <config dir>/state.sqlite.
func DefaultStateDBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stateDBFileName), nil
}

func OpenSQLiteKV(ctx context.Context, path string, session string) (*SQLiteKV, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, errors.New("sqlite kv: empty session id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLiteKV(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteKV{db: db, session: session}, nil
}

func migrateSQLiteKV(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			session TEXT NOT NULL,
			k TEXT NOT NULL,
			v TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (session, k)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate kv: %w", err)
		}
	}
	return nil
}

func (s *SQLiteKV) Session() string { return s.session }

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE session = ? AND k = ?`, s.session, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv(session, k, v, updated_at_unixms) VALUES(?, ?, ?, ?)`,
		s.session, key, value, time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteKV) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	// substr instead of LIKE: '_' is a LIKE wildcard and every grid state key contains it.
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE session = ? AND substr(k, 1, ?) = ?`,
		s.session, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// EndSession drops every value of this session.
func (s *SQLiteKV) EndSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE session = ?`, s.session)
	return err
}

func (s *SQLiteKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
