package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/sample"
)

func TestRunExport(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hospitals.db")

	hs, err := sample.Load(100)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.OpenSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(context.Background(), storage.Run{ID: "r1", City: "Bangalore", StartedAt: time.Now()}, hs); err != nil {
		t.Fatal(err)
	}
	store.Close()

	if err := runExport([]string{"-db", dbPath}); err != nil {
		t.Fatalf("csv export: %v", err)
	}
	got, err := storage.ReadCSVFile(filepath.Join(dir, "hospitals.csv"))
	if err != nil || len(got) != len(hs) {
		t.Errorf("csv export read %d records: %v", len(got), err)
	}

	if err := runExport([]string{"-db", dbPath, "-format", "geojson"}); err != nil {
		t.Fatalf("geojson export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "hospitals.geojson")); err != nil {
		t.Error(err)
	}

	if err := runExport([]string{"-db", dbPath, "-format", "xml"}); err == nil {
		t.Error("expected unsupported format error")
	}
	if err := runExport(nil); err == nil {
		t.Error("expected -db required error")
	}
}

func TestRunSample_NothingWritten(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sample.csv")
	if err := runSample([]string{"-output", out, "-min-reviews", "100000"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no file should be written when nothing qualifies")
	}
	if err := runSample([]string{"-output", out}); err != nil {
		t.Fatal(err)
	}
	if got, err := storage.ReadCSVFile(out); err != nil || len(got) != 10 {
		t.Errorf("sample csv has %d records: %v", len(got), err)
	}
}
