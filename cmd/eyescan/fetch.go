package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/eyescan/internal/config"
	"github.com/rendis/eyescan/internal/engine/pipeline"
	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/logging"
	"github.com/rendis/eyescan/internal/metrics"
	"github.com/rendis/eyescan/internal/report"
	"github.com/rendis/eyescan/internal/session"
	"github.com/rendis/eyescan/internal/tui"
)

func runFetch(args []string) error {
	var opts session.Options
	var out session.Outputs
	var metricsAddr, logPath string
	var verbose, debug bool

	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	fs.BoolVar(&opts.GridOnly, "grid-only", false, "Run only the grid (nearby) search")
	fs.BoolVar(&opts.TextOnly, "text-only", false, "Run only the city-wide text search")
	fs.BoolVar(&opts.UseSample, "sample", false, "Use the bundled sample data, no API calls")
	fs.IntVar(&opts.MinReviews, "min-reviews", -1, "Minimum review count (default: profile, EYESCAN_MIN_REVIEWS, 100)")
	fs.StringVar(&opts.ProfilePath, "profile", "", "City profile YAML (default: embedded Bangalore profile)")
	fs.IntVar(&opts.Concurrency, "concurrency", 0, "Parallel queries per strategy (default: EYESCAN_CONCURRENCY or 1)")
	fs.BoolVar(&opts.ChromeTLS, "chrome-tls", false, "Dial the API with a Chrome TLS fingerprint")
	fs.StringVar(&out.CSV, "output", session.DefaultOutput, "Output CSV path")
	fs.StringVar(&out.SQLite, "db", "", "Also store records in this SQLite file")
	fs.StringVar(&out.Postgres, "pg", "", "Also store records in PostgreSQL (DSN)")
	fs.StringVar(&out.GeoJSON, "geojson", "", "Also write a GeoJSON FeatureCollection")
	fs.StringVar(&out.S3Bucket, "s3-bucket", "", "Publish written files to this S3/MinIO bucket")
	fs.StringVar(&out.S3Prefix, "s3-prefix", "", "Object key prefix for -s3-bucket")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address during the run")
	fs.StringVar(&logPath, "log", "", "Log file (default: next to the output)")
	fs.BoolVar(&verbose, "v", false, "Mirror log events to stderr")
	fs.BoolVar(&debug, "debug", false, "Log at debug level")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: eyescan fetch [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  eyescan fetch\n")
		fmt.Fprintf(os.Stderr, "  eyescan fetch -text-only -min-reviews 500 -output text.csv\n")
		fmt.Fprintf(os.Stderr, "  eyescan fetch -profile chennai.yaml -db hospitals.db -geojson hospitals.geojson\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.GridOnly && opts.TextOnly {
		return fmt.Errorf("-grid-only and -text-only are mutually exclusive")
	}
	if logPath == "" {
		logPath = session.LogPath(out.CSV)
	}

	log, closer, err := logging.New(logging.Options{Path: logPath, Verbose: verbose, Debug: debug})
	if err != nil {
		return err
	}
	defer closer.Close()
	opts.Log = log

	config.LoadEnv(log)
	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := metrics.Start(metricsAddr, log)
		defer srv.Stop(context.Background())
		fmt.Fprintf(os.Stderr, "Metrics: http://%s/metrics\n", metricsAddr)
	}

	s, err := session.Prepare(ctx, opts)
	if err != nil {
		return err
	}

	if s.Runner != nil {
		p := s.Params
		fmt.Fprintf(os.Stderr, "City: %s (%.4f, %.4f)\n", p.City, p.CenterLat, p.CenterLng)
		fmt.Fprintf(os.Stderr, "Method: %s, %d zones x %d keywords, min reviews %d\n",
			p.Method(), len(p.Zones), len(p.Keywords), p.MinReviews)
		fmt.Fprintf(os.Stderr, "Queries: %d (run %s)\n", len(s.Runner.Plan()), s.RunID())
	}
	log.Info().Str("city", s.Params.City).Str("method", s.Method()).
		Int("min_reviews", s.Params.MinReviews).Msg("session start")

	started := time.Now()
	hospitals, fellBack, err := s.Execute(ctx, &pipeline.RunOptions{})
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nInterrupted, keeping partial results...")
	case err != nil:
		return fmt.Errorf("discovery: %w", err)
	}
	if fellBack {
		fmt.Fprintln(os.Stderr, "No results from the API, using sample data instead.")
	}
	if len(hospitals) == 0 {
		fmt.Fprintf(os.Stderr, "No hospitals with at least %d reviews found, nothing written.\n", s.Params.MinReviews)
		return nil
	}

	run := storage.Run{
		ID:        s.RunID(),
		City:      s.Params.City,
		Method:    s.Method(),
		StartedAt: started,
		Count:     len(hospitals),
	}
	written, werr := session.Write(context.WithoutCancel(ctx), out, run, hospitals, log)
	if len(written) == 0 {
		return werr
	}

	fmt.Println(report.Render(report.Compute(s.Params.City, s.Method(), hospitals)))
	fmt.Fprintf(os.Stderr, "Written: %s\n", strings.Join(written, ", "))
	fmt.Fprintf(os.Stderr, "Duration: %s\n", time.Since(started).Truncate(time.Second))

	tui.DefaultRecentStore().Add(out.CSV, len(hospitals))

	if werr != nil {
		return fmt.Errorf("some outputs failed: %w", werr)
	}
	return nil
}
