// Package session wires configuration, the Places client and the output backends
// around one discovery run. Both the fetch command and the TUI go through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendis/eyescan/internal/config"
	"github.com/rendis/eyescan/internal/engine/geo"
	"github.com/rendis/eyescan/internal/engine/pipeline"
	"github.com/rendis/eyescan/internal/engine/places"
	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/ratelimit"
	"github.com/rendis/eyescan/internal/sample"
)

const (
	// DefaultOutput is the CSV written when no path is given.
	DefaultOutput = "bangalore_eye_hospitals.csv"

	budgetEvery = 10
	budgetPause = time.Second
)

// Options selects what a run does. MinReviews < 0 keeps the profile value.
type Options struct {
	ProfilePath string
	GridOnly    bool
	TextOnly    bool
	UseSample   bool
	MinReviews  int
	Concurrency int
	ChromeTLS   bool
	Log         zerolog.Logger
}

// Session is a prepared run.
type Session struct {
	Params model.SearchParams
	Runner *pipeline.Runner
	opts   Options
}

// Prepare resolves the profile into search parameters and builds the runner.
// In sample mode no API key is needed and Runner is nil.
func Prepare(ctx context.Context, opts Options) (*Session, error) {
	profile, err := loadProfile(opts.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrConfig, err)
	}

	s := &Session{opts: opts}
	if opts.UseSample {
		s.Params = model.SearchParams{City: profile.City, MinReviews: minReviews(profile, opts)}
		return s, nil
	}

	key, err := config.APIKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrConfig, err)
	}

	params, err := profile.Params(ctx, geo.NewGeocoder())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrConfig, err)
	}
	params.GridOnly = opts.GridOnly
	params.TextOnly = opts.TextOnly
	params.MinReviews = minReviews(profile, opts)
	params.Concurrency = config.Concurrency(1)
	if opts.Concurrency > 0 {
		params.Concurrency = opts.Concurrency
	}
	s.Params = params

	budget := ratelimit.NewBudget(budgetEvery, budgetPause)
	client := places.NewClient(key, places.Options{
		ProxyURL:  config.ProxyURL(),
		ChromeTLS: opts.ChromeTLS,
		Budget:    budget,
		Logger:    opts.Log,
	})
	s.Runner = pipeline.NewRunner(client, budget, params, opts.Log)
	return s, nil
}

// Method names the strategy mix for summaries.
func (s *Session) Method() string {
	if s.opts.UseSample {
		return "Sample Data"
	}
	return s.Params.Method()
}

// Execute runs the pipeline, or loads the sample set in sample mode. When the live
// run yields nothing the filtered sample set is returned instead and fellBack is
// true. A cancelled run returns its partial records with the context error.
func (s *Session) Execute(ctx context.Context, opts *pipeline.RunOptions) (hospitals []model.Hospital, fellBack bool, err error) {
	if s.Runner == nil {
		hs, err := sample.Load(s.Params.MinReviews)
		return hs, false, err
	}

	res, err := s.Runner.Run(ctx, opts)
	if res == nil {
		return nil, false, err
	}
	if err != nil {
		return res.Combined, false, err
	}
	if len(res.Combined) > 0 {
		return res.Combined, false, nil
	}

	s.opts.Log.Warn().Msg("no results from any strategy, using sample data")
	hs, serr := sample.Load(s.Params.MinReviews)
	if serr != nil {
		return nil, false, serr
	}
	return hs, true, nil
}

// RunID identifies the run in stores; sample runs get a fixed id.
func (s *Session) RunID() string {
	if s.Runner == nil {
		return string(model.StrategySample)
	}
	return s.Runner.RunID()
}

func loadProfile(path string) (config.Profile, error) {
	if path == "" {
		return config.DefaultProfile()
	}
	return config.LoadProfile(path)
}

// minReviews resolves the threshold: flag, then profile, then EYESCAN_MIN_REVIEWS,
// then the default.
func minReviews(p config.Profile, opts Options) int {
	if opts.MinReviews >= 0 {
		return opts.MinReviews
	}
	if p.MinReviews != nil {
		return *p.MinReviews
	}
	return config.MinReviews(config.DefaultMinReviews)
}

// Outputs lists the optional sinks besides the primary CSV.
type Outputs struct {
	CSV      string
	SQLite   string
	Postgres string
	GeoJSON  string
	S3Bucket string
	S3Prefix string
}

// Write persists hospitals to every configured sink and returns the paths or
// locations written. The CSV always comes first. A failing secondary sink does not
// stop the others; their errors are joined.
func Write(ctx context.Context, out Outputs, run storage.Run, hospitals []model.Hospital, log zerolog.Logger) ([]string, error) {
	if out.CSV == "" {
		out.CSV = DefaultOutput
	}
	if dir := filepath.Dir(out.CSV); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output dir: %w", err)
		}
	}
	if err := storage.WriteCSVFile(out.CSV, hospitals); err != nil {
		return nil, err
	}
	written := []string{out.CSV}
	log.Info().Str("path", out.CSV).Int("records", len(hospitals)).Msg("csv written")

	var errs []error
	save := func(name string, open func() (storage.Backend, error)) bool {
		b, err := open()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return false
		}
		defer b.Close()
		n, err := b.Save(ctx, run, hospitals)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return false
		}
		log.Info().Str("backend", name).Int("inserted", n).Msg("records stored")
		return true
	}

	if out.SQLite != "" && save("sqlite", func() (storage.Backend, error) { return storage.OpenSQLite(out.SQLite) }) {
		written = append(written, out.SQLite)
	}
	if out.Postgres != "" && save("postgres", func() (storage.Backend, error) { return storage.OpenPostgres(ctx, out.Postgres) }) {
		written = append(written, "postgres://"+run.ID)
	}
	if out.GeoJSON != "" {
		if err := storage.WriteGeoJSON(out.GeoJSON, hospitals); err != nil {
			errs = append(errs, err)
		} else {
			written = append(written, out.GeoJSON)
		}
	}
	if out.S3Bucket != "" {
		locs, err := publish(ctx, out, written, log)
		if err != nil {
			errs = append(errs, err)
		}
		written = append(written, locs...)
	}
	return written, errors.Join(errs...)
}

func publish(ctx context.Context, out Outputs, written []string, log zerolog.Logger) ([]string, error) {
	cfg, err := storage.S3ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pub, err := storage.NewS3Publisher(cfg, out.S3Bucket)
	if err != nil {
		return nil, err
	}
	if err := pub.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	var locs []string
	for _, path := range written {
		if !isFile(path) {
			continue
		}
		key, err := pub.Publish(ctx, path, out.S3Prefix)
		if err != nil {
			return locs, err
		}
		loc := "s3://" + out.S3Bucket + "/" + key
		log.Info().Str("object", loc).Msg("published")
		locs = append(locs, loc)
	}
	return locs, nil
}

func isFile(path string) bool {
	if strings.Contains(path, "://") {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// LogPath is the run log written next to the CSV.
func LogPath(csvPath string) string {
	if csvPath == "" {
		csvPath = DefaultOutput
	}
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".log"
}
