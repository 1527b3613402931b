// Package sqlite is a store.Backend kept in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/rs/zerolog/log"

	// SQLite driver
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conferences (
	key        TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	year       INTEGER NOT NULL,
	tx_id      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

type Config struct {
	// Path of the database file. ":memory:" keeps everything in memory.
	Path        string
	BusyTimeout time.Duration
}

type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at cfg.Path.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// one writer at a time; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Debug().Str("path", cfg.Path).Msg("Opened sqlite store")
	return &Store{db: db, path: cfg.Path}, nil
}

// dsn builds the SQLite URI for cfg. Every path segment is escaped so that
// '?', '#' and '%' in file names are not read as URI syntax.
func dsn(cfg Config) string {
	segments := strings.Split(filepath.ToSlash(cfg.Path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_txlock=immediate",
		strings.Join(segments, "/"), cfg.BusyTimeout.Milliseconds())
}

func (s *Store) Load(ctx context.Context, key string) (conference.Conference, bool, error) {
	var c conference.Conference
	err := s.db.QueryRowContext(ctx, `SELECT name, year FROM conferences WHERE key = ?`, key).Scan(&c.Name, &c.Year)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return conference.Conference{}, false, nil
	case err != nil:
		return conference.Conference{}, false, fmt.Errorf("select conference: %w", err)
	}
	return c, true, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM conferences WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Apply writes every conference inside one SQL transaction.
func (s *Store) Apply(ctx context.Context, txID string, writes map[string]conference.Conference) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conferences (key, name, year, tx_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			name = excluded.name,
			year = excluded.year,
			tx_id = excluded.tx_id,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, c := range writes {
		if _, err = stmt.ExecContext(ctx, key, c.Name, c.Year, txID, now); err != nil {
			return fmt.Errorf("upsert %q: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
