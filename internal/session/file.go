package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// FileStore keeps the whole mapping in a single JSON document, rewritten on
// every mutation. A missing file is an empty mapping; a malformed file is an
// error at Open so a corrupt mapping is never silently trusted.
//
// The parsed document is cached in memory. An fsnotify watcher on the parent
// directory invalidates the cache when the file changes on disk, so external
// edits (including another process rewriting the file) are picked up on the
// next access.
type FileStore struct {
	path string

	mu    sync.Mutex
	cache map[string]string // nil means reload from disk

	watcher *fsnotify.Watcher
}

// OpenFile opens (or implies) the JSON session file at path.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session: mkdir %s: %w", filepath.Dir(path), err)
	}

	s := &FileStore{path: path}

	// Validate up front: startup must fail on a document we cannot trust.
	cache, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cache = cache

	s.startWatcher()
	return s, nil
}

// startWatcher watches the parent directory (the file itself disappears
// across atomic renames) and drops the cache on any event touching it.
func (s *FileStore) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("session_watcher_unavailable", slog.String("error", err.Error()))
		return
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		log.Warn("session_watcher_add_failed", slog.String("error", err.Error()))
		w.Close()
		return
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				s.mu.Lock()
				s.cache = nil
				s.mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("session_watcher_error", slog.String("error", err.Error()))
			}
		}
	}()
}

// Get implements Store.
func (s *FileStore) Get(chatID int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", false, err
	}
	id, ok := s.cache[key(chatID)]
	return id, ok, nil
}

// Create implements Store.
func (s *FileStore) Create(chatID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.cache[key(chatID)] = id
	if err := s.persist(); err != nil {
		return "", err
	}
	return id, nil
}

// Remove implements Store.
func (s *FileStore) Remove(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.cache[key(chatID)]; !ok {
		return nil
	}
	delete(s.cache, key(chatID))
	return s.persist()
}

// Close implements Store.
func (s *FileStore) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *FileStore) ensureLoaded() error {
	if s.cache != nil {
		return nil
	}
	cache, err := s.load()
	if err != nil {
		return err
	}
	s.cache = cache
	return nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	sessions := make(map[string]string)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("session: malformed %s: %w", s.path, err)
	}
	return sessions, nil
}

// persist rewrites the whole document atomically: write a temp file in the
// same directory, then rename over the old one.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("session: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("session: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("session: rename over %s: %w", s.path, err)
	}
	return nil
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
