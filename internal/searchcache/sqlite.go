package searchcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps entries in a single table of a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("searchcache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS search_cache (
		key TEXT PRIMARY KEY,
		results TEXT NOT NULL,
		at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("searchcache: create table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		raw string
		at  int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT results, at FROM search_cache WHERE key = ?`, key).Scan(&raw, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{At: time.UnixMilli(at)}
	if err := json.Unmarshal([]byte(raw), &e.Results); err != nil {
		return Entry{}, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return e, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e.Results)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_cache (key, results, at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET results = excluded.results, at = excluded.at`,
		key, string(raw), e.At.UnixMilli())
	return err
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE key = ?`, key)
	return err
}

// PruneBefore removes entries written before t.
func (s *SQLiteStore) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE at < ?`, t.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
