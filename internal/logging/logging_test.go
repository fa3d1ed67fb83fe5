package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, closer, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info().Str("zone", "1").Int("found", 3).Msg("zone done")
	logger.Debug().Msg("hidden at info level")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "zone done" || entry["zone"] != "1" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_NoSinks(t *testing.T) {
	logger, closer, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()
	logger.Info().Msg("discarded")
}

func TestNew_BadPath(t *testing.T) {
	_, _, err := New(Options{Path: filepath.Join(t.TempDir(), "missing", "dir", "run.log")})
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}
