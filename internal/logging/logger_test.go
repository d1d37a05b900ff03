package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "imd.log")
	logger, err := New(Options{Path: path, Profile: "test", Quiet: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("hidden")
	logger.Info("daemon starting")
	_ = logger.Sync()

	entries := readLines(t, path)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(entries), entries)
	}
	if entries[0]["msg"] != "daemon starting" || entries[0]["profile"] != "test" {
		t.Errorf("entry = %v", entries[0])
	}
	if _, ok := entries[0]["ts"]; !ok {
		t.Error("entry has no ts field")
	}
}

func TestLevelChangesAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imd.log")
	level, err := Level("warn")
	if err != nil {
		t.Fatal(err)
	}
	logger, err := New(Options{Path: path, Level: level, Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("dropped")
	level.SetLevel(zapcore.DebugLevel)
	logger.Debug("kept")
	_ = logger.Sync()

	entries := readLines(t, path)
	if len(entries) != 1 || entries[0]["msg"] != "kept" {
		t.Errorf("entries = %v", entries)
	}

	if _, err := Level("loud"); err == nil {
		t.Error("Level(\"loud\") should fail")
	}
}
