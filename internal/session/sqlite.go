package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the mapping in SQLite. WAL mode plus a busy timeout
// lets several bot processes share one state directory safely.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at dbPath and migrates the schema.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("session: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", dbPath, err)
	}

	// WAL mode: concurrent readers while writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: wal mode: %w", err)
	}
	// Wait up to 5s if another process holds the lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: busy timeout: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			chat_id    TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(chatID int64) (string, bool, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT session_id FROM sessions WHERE chat_id = ?", key(chatID),
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: get: %w", err)
	}
	return id, true, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(chatID int64) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO sessions (chat_id, session_id, created_at) VALUES (?, ?, ?)",
		key(chatID), id, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(chatID int64) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE chat_id = ?", key(chatID)); err != nil {
		return fmt.Errorf("session: remove: %w", err)
	}
	return nil
}

// Close checkpoints WAL and closes the database.
func (s *SQLiteStore) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
