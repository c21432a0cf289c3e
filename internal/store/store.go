// Package store persists transcript drafts locally.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a small key/value draft store backed by sqlite. Each capture
// variant writes its own draft key so switching variants never clobbers a
// draft.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	key        TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);`

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "mudawin", "drafts.db"), nil
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init draft store: %w", err)
	}
	return &Store{db: db}, nil
}

// DraftKey names the draft slot for a capture variant.
func DraftKey(variant string) string {
	return "transcript." + variant
}

func (s *Store) SaveDraft(key, text string) error {
	_, err := s.db.Exec(`
		INSERT INTO drafts (key, text, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(key) DO UPDATE SET
			text = excluded.text,
			updated_at = excluded.updated_at`,
		key, text)
	if err != nil {
		return fmt.Errorf("save draft %q: %w", key, err)
	}
	return nil
}

// LoadDraft returns the stored draft, or "" when none exists.
func (s *Store) LoadDraft(key string) (string, error) {
	var text string
	err := s.db.QueryRow(`SELECT text FROM drafts WHERE key = ?`, key).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load draft %q: %w", key, err)
	}
	return text, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
