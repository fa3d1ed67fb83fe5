package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/eyescan/internal/engine/storage"
)

func runExport(args []string) error {
	var dbPath, outputPath, format string

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "Path to .db file (required)")
	fs.StringVar(&outputPath, "output", "", "Output file path (default: same dir as db)")
	fs.StringVar(&format, "format", "csv", "Export format: csv or geojson")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eyescan export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  eyescan export -db hospitals.db\n")
		fmt.Fprintf(os.Stderr, "  eyescan export -db hospitals.db -format geojson -output map.geojson\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	ext, err := exportExt(format)
	if err != nil {
		return err
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ext
	}

	store, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	hospitals, err := store.Load(context.Background())
	if err != nil {
		return fmt.Errorf("loading db: %w", err)
	}
	if len(hospitals) == 0 {
		return fmt.Errorf("no hospitals found in database")
	}

	if ext == ".geojson" {
		err = storage.WriteGeoJSON(outputPath, hospitals)
	} else {
		err = storage.WriteCSVFile(outputPath, hospitals)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Exported %d hospitals to %s\n", len(hospitals), outputPath)
	return nil
}

func exportExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "csv":
		return ".csv", nil
	case "geojson":
		return ".geojson", nil
	}
	return "", fmt.Errorf("unsupported format: %s (csv or geojson)", format)
}
