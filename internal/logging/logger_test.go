package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug", Format: "json"})
	defer Shutdown()

	Logger().Info("hello", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "teledeck.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestForComponentBeforeInit(t *testing.T) {
	Shutdown()

	// Created before Init: must still pick up the real handler afterwards.
	log := ForComponent("session")

	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "info", Format: "json"})
	defer Shutdown()

	log.Info("late_binding")

	data, err := os.ReadFile(filepath.Join(dir, "teledeck.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "late_binding") {
		t.Errorf("component logger did not reach file: %s", out)
	}
	if !strings.Contains(out, `"component":"session"`) {
		t.Errorf("component attribute missing: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "warn", Format: "json"})
	defer Shutdown()

	Logger().Info("dropped")
	Logger().Warn("kept")

	data, err := os.ReadFile(filepath.Join(dir, "teledeck.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Errorf("info message not filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn message missing: %s", out)
	}
}
