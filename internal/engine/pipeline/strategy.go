package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/eyescan/internal/engine/geo"
	"github.com/rendis/eyescan/internal/metrics"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/ratelimit"
)

// DefaultZoneDelay is the pause between grid zones.
const DefaultZoneDelay = 500 * time.Millisecond

// maxConsecutiveQuota aborts a strategy once this many queries in a row fail on quota.
const maxConsecutiveQuota = 3

// PlacesAPI is everything the pipeline needs from the Places client.
type PlacesAPI interface {
	Searcher
	DetailsFetcher
}

type Stats struct {
	QueriesTotal   atomic.Int64
	QueriesDone    atomic.Int64
	PagesFetched   atomic.Int64
	ResultsSeen    atomic.Int64
	DetailsFetched atomic.Int64
	Accepted       atomic.Int64
	Duplicates     atomic.Int64
	BelowReviews   atomic.Int64
	OutOfRange     atomic.Int64
	Errors         atomic.Int64
	Outcomes       Outcomes
}

// RunOptions provides optional callbacks for the discovery pipeline.
type RunOptions struct {
	// OnHospital is called for every record accepted by a strategy aggregator.
	// The TUI uses it to show records as they arrive.
	OnHospital func(model.Hospital)
	// Progress receives the live progress line. Defaults to stderr.
	Progress io.Writer
	// SuppressStderr disables the built-in progress reporter.
	SuppressStderr bool
	// Stats allows passing an external Stats object for live progress tracking.
	// If nil, Run() creates its own.
	Stats *Stats
}

// Result is the output of a run.
type Result struct {
	RunID    string
	Grid     []model.Hospital
	Text     []model.Hospital
	Combined []model.Hospital
	Requests int64
	Elapsed  time.Duration
}

// Runner executes the grid and text strategies against one Places client and one
// request budget.
type Runner struct {
	api      PlacesAPI
	budget   *ratelimit.Budget
	params   model.SearchParams
	fetcher  *Fetcher
	enricher *Enricher
	log      zerolog.Logger
	runID    string
}

func NewRunner(api PlacesAPI, budget *ratelimit.Budget, params model.SearchParams, log zerolog.Logger) *Runner {
	if params.MinReviews < 0 {
		params.MinReviews = 0
	}
	if params.Concurrency <= 0 {
		params.Concurrency = 1
	}
	if params.ZoneDelay < 0 {
		params.ZoneDelay = 0
	}
	runID := uuid.NewString()
	return &Runner{
		api:      api,
		budget:   budget,
		params:   params,
		fetcher:  NewFetcher(api, budget, params.PlaceType, params.PageDelay, log),
		enricher: NewEnricher(api, budget),
		log:      log.With().Str("run_id", runID).Logger(),
		runID:    runID,
	}
}

func (r *Runner) RunID() string { return r.runID }

// Plan returns the descriptors of every enabled strategy, grid first.
func (r *Runner) Plan() []model.QueryDescriptor {
	var plan []model.QueryDescriptor
	if r.params.RunGrid() {
		plan = append(plan, PlanGrid(r.params.Zones, r.params.Keywords, r.params.Radius, r.params.GridMaxPages)...)
	}
	if r.params.RunText() {
		plan = append(plan, PlanText(r.params.City, r.params.Keywords, r.params.TextMaxPages)...)
	}
	return plan
}

// Run executes the enabled strategies and combines their results, grid before text.
// A cancelled context stops the run early; the partial result is returned together
// with the context error.
func (r *Runner) Run(ctx context.Context, opts *RunOptions) (*Result, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if r.params.GridOnly && r.params.TextOnly {
		return nil, fmt.Errorf("%w: grid-only and text-only are mutually exclusive", ErrConfig)
	}
	if len(r.params.Keywords) == 0 {
		return nil, fmt.Errorf("%w: no keywords", ErrConfig)
	}
	if r.params.RunGrid() && len(r.params.Zones) == 0 {
		return nil, fmt.Errorf("%w: grid search needs at least one zone", ErrConfig)
	}

	stats := opts.Stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.QueriesTotal.Store(int64(len(r.Plan())))

	startTime := time.Now()
	done := make(chan struct{})
	go r.reportProgress(stats, opts, startTime, done)

	var grid, text []model.Hospital
	runGrid := func() error {
		plan := PlanGrid(r.params.Zones, r.params.Keywords, r.params.Radius, r.params.GridMaxPages)
		grid = r.runStrategy(ctx, model.StrategyGrid, plan, nil, stats, opts)
		return nil
	}
	runText := func() error {
		plan := PlanText(r.params.City, r.params.Keywords, r.params.TextMaxPages)
		v := geo.NewValidator(r.params.CenterLat, r.params.CenterLng, r.params.MaxDistanceKm)
		text = r.runStrategy(ctx, model.StrategyText, plan, &v, stats, opts)
		return nil
	}

	if r.params.Concurrency > 1 && r.params.RunGrid() && r.params.RunText() {
		var g errgroup.Group
		g.Go(runGrid)
		g.Go(runText)
		g.Wait()
	} else {
		if r.params.RunGrid() {
			runGrid()
		}
		if r.params.RunText() && ctx.Err() == nil {
			runText()
		}
	}

	close(done)

	res := &Result{
		RunID:    r.runID,
		Grid:     grid,
		Text:     text,
		Combined: Combine(grid, text),
		Requests: r.budget.Calls(),
		Elapsed:  time.Since(startTime),
	}
	if !opts.SuppressStderr {
		fmt.Fprintf(progressWriter(opts), "\r[%d/%d queries] %d results | %d hospitals | %d errors | %d calls | %s\n",
			stats.QueriesDone.Load(), stats.QueriesTotal.Load(),
			stats.ResultsSeen.Load(), len(res.Combined), stats.Errors.Load(),
			res.Requests, res.Elapsed.Truncate(time.Second))
	}
	r.log.Info().Int("grid", len(grid)).Int("text", len(text)).Int("combined", len(res.Combined)).
		Int64("requests", res.Requests).Dur("elapsed", res.Elapsed).Msg("run finished")
	return res, ctx.Err()
}

// strategyRun holds the per-strategy state shared by its query workers.
type strategyRun struct {
	strategy  model.Strategy
	agg       *Aggregator
	validator *geo.Validator
	stats     *Stats
	opts      *RunOptions

	mu           sync.Mutex
	rejected     map[string]struct{}
	firstFailure Category

	failedQueries atomic.Int64
	quotaStreak   atomic.Int64
}

func (s *strategyRun) fail(cat Category) {
	s.failedQueries.Add(1)
	s.mu.Lock()
	if s.firstFailure == CategoryNone {
		s.firstFailure = cat
	}
	s.mu.Unlock()
}

func (s *strategyRun) reject(id string) {
	s.mu.Lock()
	s.rejected[id] = struct{}{}
	s.mu.Unlock()
}

func (s *strategyRun) wasRejected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rejected[id]
	return ok
}

func (r *Runner) runStrategy(ctx context.Context, strategy model.Strategy, plan []model.QueryDescriptor, v *geo.Validator, stats *Stats, opts *RunOptions) []model.Hospital {
	s := &strategyRun{
		strategy:  strategy,
		agg:       NewAggregator(),
		validator: v,
		stats:     stats,
		opts:      opts,
		rejected:  make(map[string]struct{}),
	}
	log := r.log.With().Str("strategy", string(strategy)).Logger()
	log.Info().Int("queries", len(plan)).Msg("strategy started")

	var g errgroup.Group
	g.SetLimit(r.params.Concurrency)

	aborted := false
	for i, q := range plan {
		if ctx.Err() != nil {
			break
		}
		if s.quotaStreak.Load() >= maxConsecutiveQuota {
			log.Error().Msg("persistent quota rejections, aborting strategy")
			aborted = true
			break
		}
		if i > 0 && strategy == model.StrategyGrid && plan[i-1].Zone.Index != q.Zone.Index && r.params.ZoneDelay > 0 {
			if err := r.budget.Wait(ctx, r.params.ZoneDelay); err != nil {
				break
			}
		}

		if r.params.Concurrency <= 1 {
			r.runQuery(ctx, s, q, log)
			continue
		}
		g.Go(func() error {
			r.runQuery(ctx, s, q, log)
			return nil
		})
	}
	g.Wait()

	out := s.agg.Materialize()
	subject := string(strategy)
	switch {
	case ctx.Err() != nil:
		stats.Outcomes.Add(failed(LevelStrategy, subject, ctx.Err()))
	case aborted:
		stats.Outcomes.Add(Outcome{Level: LevelStrategy, Status: StatusFailed, Category: CategoryQuota, Subject: subject,
			Err: fmt.Errorf("%s aborted after %d consecutive quota failures", strategy, maxConsecutiveQuota)})
	case len(plan) > 0 && s.failedQueries.Load() == int64(len(plan)):
		stats.Outcomes.Add(Outcome{Level: LevelStrategy, Status: StatusFailed, Category: s.firstFailure, Subject: subject,
			Err: fmt.Errorf("all %d %s queries failed", len(plan), strategy)})
	case len(out) == 0:
		stats.Outcomes.Add(Outcome{Level: LevelStrategy, Status: StatusEmpty, Subject: subject})
	default:
		stats.Outcomes.Add(Outcome{Level: LevelStrategy, Status: StatusSuccess, Subject: subject})
	}

	log.Info().Int("hospitals", len(out)).Int64("failed_queries", s.failedQueries.Load()).Msg("strategy finished")
	return out
}

func (r *Runner) runQuery(ctx context.Context, s *strategyRun, q model.QueryDescriptor, log zerolog.Logger) {
	defer s.stats.QueriesDone.Add(1)

	prov := model.Provenance{Strategy: q.Strategy, Zone: q.Zone.Index, Keyword: q.Keyword, RunID: r.runID}
	found := 0
	_, err := r.fetcher.Fetch(ctx, q, func(p Page) error {
		s.stats.PagesFetched.Add(1)
		for _, item := range p.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.stats.ResultsSeen.Add(1)
			if r.handleItem(ctx, s, item, prov, log) {
				found++
			}
		}
		return nil
	})

	subject := q.String()
	switch {
	case err != nil:
		out := failed(LevelQuery, subject, err)
		s.stats.Outcomes.Add(out)
		if out.Category == CategoryCanceled {
			return
		}
		s.stats.Errors.Add(1)
		s.fail(out.Category)
		if out.Category == CategoryQuota {
			s.quotaStreak.Add(1)
		} else {
			s.quotaStreak.Store(0)
		}
		log.Warn().Err(err).Str("query", subject).Str("category", string(out.Category)).Msg("query failed")
	case found == 0:
		s.quotaStreak.Store(0)
		s.stats.Outcomes.Add(Outcome{Level: LevelQuery, Status: StatusEmpty, Subject: subject})
	default:
		s.quotaStreak.Store(0)
		s.stats.Outcomes.Add(Outcome{Level: LevelQuery, Status: StatusSuccess, Subject: subject})
		log.Debug().Str("query", subject).Int("new", found).Msg("query done")
	}
}

// handleItem enriches, validates, filters and aggregates one search hit. It reports
// whether a new record was stored.
func (r *Runner) handleItem(ctx context.Context, s *strategyRun, item model.RawResult, prov model.Provenance, log zerolog.Logger) bool {
	if s.agg.Sight(item.PlaceID) {
		s.stats.Duplicates.Add(1)
		return false
	}
	if s.wasRejected(item.PlaceID) {
		return false
	}
	if s.validator != nil && item.HasLocation && !s.validator.Accept(item.Lat, item.Lng) {
		s.stats.OutOfRange.Add(1)
		s.reject(item.PlaceID)
		return false
	}

	h, err := r.enricher.Enrich(ctx, item, prov)
	s.stats.DetailsFetched.Add(1)
	if err != nil {
		out := failed(LevelItem, item.PlaceID, err)
		s.stats.Outcomes.Add(out)
		if out.Category == CategoryMissingField {
			s.reject(item.PlaceID)
		}
		log.Debug().Err(err).Str("place_id", item.PlaceID).Msg("item skipped")
		return false
	}

	if s.validator != nil && !s.validator.Accept(h.Lat, h.Lng) {
		s.stats.OutOfRange.Add(1)
		s.reject(item.PlaceID)
		return false
	}
	if !MeetsReviews(h, r.params.MinReviews) {
		s.stats.BelowReviews.Add(1)
		s.reject(item.PlaceID)
		return false
	}
	if !s.agg.Offer(h) {
		s.stats.Duplicates.Add(1)
		return false
	}

	s.stats.Accepted.Add(1)
	s.stats.Outcomes.Add(Outcome{Level: LevelItem, Status: StatusSuccess, Subject: item.PlaceID})
	metrics.RecordsAggregated.WithLabelValues(string(s.strategy)).Inc()
	if s.opts.OnHospital != nil {
		s.opts.OnHospital(h)
	}
	return true
}

func progressWriter(opts *RunOptions) io.Writer {
	if opts.Progress != nil {
		return opts.Progress
	}
	return os.Stderr
}

// reportProgress prints a live status line every 2s and logs a progress event every 10s.
func (r *Runner) reportProgress(stats *Stats, opts *RunOptions, startTime time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	logTicker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	defer logTicker.Stop()
	for {
		select {
		case <-ticker.C:
			if opts.SuppressStderr {
				continue
			}
			elapsed := time.Since(startTime).Truncate(time.Second)
			fmt.Fprintf(progressWriter(opts), "\r[%d/%d queries] %d results | %d hospitals | %d duplicates | %d errors | %d calls | %s",
				stats.QueriesDone.Load(), stats.QueriesTotal.Load(),
				stats.ResultsSeen.Load(), stats.Accepted.Load(), stats.Duplicates.Load(),
				stats.Errors.Load(), r.budget.Calls(), elapsed)
		case <-logTicker.C:
			r.log.Info().
				Int64("queries_done", stats.QueriesDone.Load()).
				Int64("queries_total", stats.QueriesTotal.Load()).
				Int64("accepted", stats.Accepted.Load()).
				Int64("errors", stats.Errors.Load()).
				Int64("calls", r.budget.Calls()).
				Dur("elapsed", time.Since(startTime).Truncate(time.Second)).
				Msg("progress")
		case <-done:
			return
		}
	}
}
