// Package store persists destination configuration in sqlite.
//
// The table is tiny (a handful of chats) and mutated only by the bot's
// admin commands; the watcher re-reads it every cycle so edits take effect
// on the next cycle, never the current one.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rolewatch/internal/transport"
	logx "rolewatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const mentionKey = "mention_target"

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Destinations returns every configured delivery target.
func (s *Store) Destinations(ctx context.Context) ([]transport.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, thread_id FROM destinations ORDER BY chat_id, thread_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []transport.Target
	for rows.Next() {
		var t transport.Target
		if err := rows.Scan(&t.ChatID, &t.ThreadID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddDestination registers a target. Adding an existing one is a no-op.
func (s *Store) AddDestination(ctx context.Context, t transport.Target) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO destinations(chat_id, thread_id, added_at) VALUES(?,?,?)`,
		t.ChatID, t.ThreadID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// RemoveDestination unregisters a target and reports whether it existed.
func (s *Store) RemoveDestination(ctx context.Context, t transport.Target) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM destinations WHERE chat_id = ? AND thread_id = ?`,
		t.ChatID, t.ThreadID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MentionTarget returns the configured mention token ("" when unset).
func (s *Store) MentionTarget(ctx context.Context) (string, error) {
	var v sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, mentionKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v.String), nil
}

// SetMentionTarget stores the mention token; an empty value clears it.
func (s *Store) SetMentionTarget(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, mentionKey)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		mentionKey, target)
	return err
}
