package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const maxRecent = 10

type RecentEntry struct {
	Path     string    `json:"path"`
	Count    int       `json:"count,omitempty"`
	OpenedAt time.Time `json:"opened_at"`
}

// RecentStore keeps the most recently opened outputs in a JSON file.
type RecentStore struct {
	path string
}

// DefaultRecentStore lives in the user config directory.
func DefaultRecentStore() RecentStore {
	cfg, _ := os.UserConfigDir()
	return RecentStore{path: filepath.Join(cfg, "eyescan", "recent.json")}
}

func (s RecentStore) Load() []RecentEntry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []RecentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Add moves path to the front of the list, dropping the oldest entries beyond
// maxRecent. count is the number of records, 0 when unknown.
func (s RecentStore) Add(path string, count int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	entries := s.Load()
	filtered := make([]RecentEntry, 0, len(entries)+1)
	filtered = append(filtered, RecentEntry{Path: abs, Count: count, OpenedAt: time.Now()})
	for _, e := range entries {
		if e.Path != abs {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) > maxRecent {
		filtered = filtered[:maxRecent]
	}

	data, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding recent list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}
