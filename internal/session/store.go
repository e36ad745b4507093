// Package session persists the mapping from Telegram chat ID to Claude
// session ID so follow-up messages resume the same assistant context.
package session

import (
	"fmt"
	"path/filepath"

	"github.com/asheshgoplani/teledeck/internal/config"
	"github.com/asheshgoplani/teledeck/internal/logging"
)

var log = logging.ForComponent(logging.CompSession)

// Store maps one chat to at most one Claude session ID.
type Store interface {
	// Get returns the session ID for a chat, with ok=false when absent.
	Get(chatID int64) (id string, ok bool, err error)

	// Create generates a fresh session ID, persists it for the chat
	// (replacing any existing entry) and returns it.
	Create(chatID int64) (string, error)

	// Remove deletes the entry for a chat. Absence is not an error.
	Remove(chatID int64) error

	// Close releases backend resources.
	Close() error
}

// Open builds the configured store backend inside cfg.StateDir.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return OpenSQLite(filepath.Join(cfg.StateDir, "state.db"))
	case config.StoreJSON:
		return OpenFile(filepath.Join(cfg.StateDir, "sessions.json"))
	default:
		return nil, fmt.Errorf("session: unknown store backend %q", cfg.Store)
	}
}
