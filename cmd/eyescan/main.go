package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/rendis/eyescan/internal/config"
	"github.com/rendis/eyescan/internal/tui"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "fetch":
			err = runFetch(os.Args[2:])
		case "export":
			err = runExport(os.Args[2:])
		case "sample":
			err = runSample(os.Args[2:])
		case "version":
			fmt.Println("eyescan " + version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// No subcommand → launch TUI
	config.LoadEnv(zerolog.Nop())
	city := "Bangalore"
	if p, err := config.DefaultProfile(); err == nil {
		city = p.City
	}
	err := tui.Run(tui.Options{
		City:        city,
		OutputDir:   "results",
		Concurrency: config.Concurrency(1),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `eyescan - eye hospital discovery over the Places API

Usage:
  eyescan                 Launch interactive TUI
  eyescan fetch [flags]   Run a discovery and write the CSV
  eyescan export [flags]  Re-export a .db store to CSV or GeoJSON
  eyescan sample [flags]  Write the bundled sample dataset
  eyescan version         Show version

Run 'eyescan fetch --help' or 'eyescan export --help' for flags.
`)
}
