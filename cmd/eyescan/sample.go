package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rendis/eyescan/internal/config"
	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/report"
	"github.com/rendis/eyescan/internal/sample"
	"github.com/rendis/eyescan/internal/session"
)

func runSample(args []string) error {
	var outputPath string
	var minReviews int

	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	fs.StringVar(&outputPath, "output", session.DefaultOutput, "Output CSV path")
	fs.IntVar(&minReviews, "min-reviews", config.DefaultMinReviews, "Minimum review count")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hospitals, err := sample.Load(minReviews)
	if err != nil {
		return err
	}
	if len(hospitals) == 0 {
		fmt.Fprintf(os.Stderr, "No sample hospitals with at least %d reviews, nothing written.\n", minReviews)
		return nil
	}
	if err := storage.WriteCSVFile(outputPath, hospitals); err != nil {
		return err
	}

	fmt.Println(report.Render(report.Compute("Bangalore", "Sample Data", hospitals)))
	fmt.Fprintf(os.Stderr, "Written: %s\n", outputPath)
	return nil
}
