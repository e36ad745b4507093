package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	file, err := OpenFile(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	stores := map[string]Store{"json": file, "sqlite": sqlite}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			const chatID = int64(1234)

			// Absent before create
			if _, ok, err := store.Get(chatID); err != nil || ok {
				t.Fatalf("Get before Create: ok=%v err=%v", ok, err)
			}

			id, err := store.Create(chatID)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if id == "" {
				t.Fatal("Create returned empty id")
			}

			got, ok, err := store.Get(chatID)
			if err != nil || !ok {
				t.Fatalf("Get after Create: ok=%v err=%v", ok, err)
			}
			if got != id {
				t.Errorf("Get returned %q, want %q", got, id)
			}

			// Create replaces the previous entry
			id2, err := store.Create(chatID)
			if err != nil {
				t.Fatalf("second Create: %v", err)
			}
			if id2 == id {
				t.Error("second Create returned the same id")
			}
			if got, _, _ := store.Get(chatID); got != id2 {
				t.Errorf("Get after replace = %q, want %q", got, id2)
			}

			if err := store.Remove(chatID); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if _, ok, _ := store.Get(chatID); ok {
				t.Error("Get after Remove still present")
			}

			// Removing an absent key is not an error
			if err := store.Remove(chatID); err != nil {
				t.Errorf("Remove absent: %v", err)
			}

			// Distinct chats stay independent
			a, _ := store.Create(1)
			b, _ := store.Create(2)
			if a == b {
				t.Error("two chats share a session id")
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	s1, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	id, err := s1.Create(42)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s1.Close()

	s2, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Get(42)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got != id {
		t.Errorf("Get after reopen = %q, want %q", got, id)
	}
}

func TestFileStoreDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	id, err := s.Create(-100123)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("persisted document is not a string map: %v", err)
	}
	if doc["-100123"] != id {
		t.Errorf("document = %v, want entry %q -> %q", doc, "-100123", id)
	}
}

func TestOpenFileRejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenFile(path); err == nil {
		t.Fatal("OpenFile accepted a malformed document")
	}
}

func TestFileStorePicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer s.Close()

	if _, err := s.Create(1); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Rewrite the document behind the store's back.
	if err := os.WriteFile(path, []byte(`{"7": "external-id"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, ok, err := s.Get(7)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok && got == "external-id" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("external edit never observed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	id, err := s1.Create(42)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Get(42)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got != id {
		t.Errorf("Get after reopen = %q, want %q", got, id)
	}
}
