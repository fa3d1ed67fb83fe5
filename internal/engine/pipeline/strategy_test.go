package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendis/eyescan/internal/engine/places"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/ratelimit"
)

func testParams() model.SearchParams {
	return model.SearchParams{
		City:      "Bangalore",
		CenterLat: centerLat,
		CenterLng: centerLng,
		Zones: []model.Zone{
			{Index: 1, Lat: centerLat, Lng: centerLng},
			{Index: 2, Lat: 13.05, Lng: centerLng},
		},
		Keywords:      []string{"eye hospital"},
		PlaceType:     "hospital",
		Radius:        15000,
		MinReviews:    100,
		GridMaxPages:  3,
		TextMaxPages:  2,
		MaxDistanceKm: 50,
		ZoneDelay:     DefaultZoneDelay,
		Concurrency:   1,
	}
}

// bangaloreAPI serves two grid zones and one text query:
//
//	zone 1: A (500 reviews), B (50 reviews), C (no geometry)
//	zone 2: A again, E (300 reviews)
//	text:   A again, D (Delhi), F (250 reviews)
func bangaloreAPI() *fakeAPI {
	return &fakeAPI{
		nearby: func(req places.NearbyRequest) (*places.SearchResponse, error) {
			if req.Lat == centerLat {
				return chain([]places.PlaceResult{
					result("A", 12.97, 77.59), result("B", 12.95, 77.6), result("C", 12.96, 77.61),
				})(req.PageToken), nil
			}
			return chain([]places.PlaceResult{
				result("A", 12.97, 77.59), result("E", 13.04, 77.58),
			})(req.PageToken), nil
		},
		text: func(req places.TextRequest) (*places.SearchResponse, error) {
			return chain([]places.PlaceResult{
				result("A", 12.97, 77.59), result("D", 28.61, 77.2), result("F", 12.93, 77.62),
			})(req.PageToken), nil
		},
		details: map[string]*places.PlaceDetails{
			"A": detail("Sankara Eye Hospital", 12.97, 77.59, 500, 4.5),
			"B": detail("Small Clinic", 12.95, 77.6, 50, 4.9),
			"C": {Name: "No Geometry"},
			"D": detail("Delhi Eye Centre", 28.61, 77.2, 900, 4.1),
			"E": detail("Vasan Eye Care", 13.04, 77.58, 300, 3.9),
			"F": detail("Agarwal Eye Hospital", 12.93, 77.62, 250, 4.3),
		},
	}
}

func newTestRunner(api PlacesAPI, params model.SearchParams, rec *waitRecorder) *Runner {
	budget := ratelimit.NewBudget(10, time.Second).WithWait(rec.wait)
	return NewRunner(api, budget, params, zerolog.Nop())
}

func assertOutputInvariants(t *testing.T, hs []model.Hospital, minReviews int) {
	t.Helper()
	seen := map[string]bool{}
	for i, h := range hs {
		if h.ReviewCount < minReviews {
			t.Errorf("%s has %d reviews, below %d", h.PlaceID, h.ReviewCount, minReviews)
		}
		if seen[h.PlaceID] {
			t.Errorf("duplicate id %s", h.PlaceID)
		}
		seen[h.PlaceID] = true
		if i > 0 && hs[i-1].ReviewCount < h.ReviewCount {
			t.Errorf("not sorted at %d: %d < %d", i, hs[i-1].ReviewCount, h.ReviewCount)
		}
	}
}

func TestRunner_GridAndText(t *testing.T) {
	api := bangaloreAPI()
	rec := &waitRecorder{}
	stats := &Stats{}
	var streamed []string
	r := newTestRunner(api, testParams(), rec)

	res, err := r.Run(context.Background(), &RunOptions{
		SuppressStderr: true,
		Stats:          stats,
		OnHospital:     func(h model.Hospital) { streamed = append(streamed, h.PlaceID) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fmt.Sprint(ids(res.Grid)); got != "[A E]" {
		t.Errorf("grid = %s", got)
	}
	if got := fmt.Sprint(ids(res.Text)); got != "[A F]" {
		t.Errorf("text = %s", got)
	}
	if got := fmt.Sprint(ids(res.Combined)); got != "[A E F]" {
		t.Errorf("combined = %s", got)
	}
	assertOutputInvariants(t, res.Combined, 100)

	a := res.Combined[0]
	if a.Provenance.Strategy != model.StrategyGrid || a.Provenance.Zone != 1 || a.Provenance.RunID != r.RunID() {
		t.Errorf("A should keep its first grid provenance, got %+v", a.Provenance)
	}
	if a.Sightings != 3 {
		t.Errorf("A sightings = %d, want 3", a.Sightings)
	}
	if fmt.Sprint(streamed) != "[A E A F]" {
		t.Errorf("streamed = %v", streamed)
	}

	if api.detailCount("A") != 2 {
		t.Errorf("A details fetched %d times, want once per strategy", api.detailCount("A"))
	}
	if api.detailCount("D") != 0 {
		t.Error("out-of-range search hit should be rejected before details")
	}
	if res.Requests != 9 {
		t.Errorf("requests = %d, want 9", res.Requests)
	}
	if rec.count(DefaultZoneDelay) != 1 {
		t.Errorf("expected one zone delay, got %v", rec.waits)
	}

	if stats.BelowReviews.Load() != 1 || stats.OutOfRange.Load() != 1 || stats.Duplicates.Load() != 1 {
		t.Errorf("below=%d out=%d dup=%d", stats.BelowReviews.Load(), stats.OutOfRange.Load(), stats.Duplicates.Load())
	}
	if n := stats.Outcomes.Count(LevelItem, StatusFailed, CategoryMissingField); n != 1 {
		t.Errorf("missing_field item failures = %d, want 1", n)
	}
	if n := stats.Outcomes.Count(LevelQuery, StatusSuccess, CategoryNone); n != 3 {
		t.Errorf("successful queries = %d, want 3", n)
	}
	if n := stats.Outcomes.Count(LevelStrategy, StatusSuccess, CategoryNone); n != 2 {
		t.Errorf("successful strategies = %d, want 2", n)
	}
	if stats.QueriesDone.Load() != stats.QueriesTotal.Load() || stats.QueriesTotal.Load() != 3 {
		t.Errorf("queries %d/%d", stats.QueriesDone.Load(), stats.QueriesTotal.Load())
	}
}

func TestRunner_GridOnly(t *testing.T) {
	api := bangaloreAPI()
	params := testParams()
	params.GridOnly = true

	res, err := newTestRunner(api, params, &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.textCalls) != 0 {
		t.Error("text search should not run")
	}
	if fmt.Sprint(ids(res.Combined)) != "[A E]" {
		t.Errorf("combined = %v", ids(res.Combined))
	}
}

func TestRunner_TextOnlyEmpty(t *testing.T) {
	api := &fakeAPI{}
	params := testParams()
	params.TextOnly = true
	stats := &Stats{}

	res, err := newTestRunner(api, params, &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true, Stats: stats})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Combined) != 0 || len(api.nearbyCalls) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if stats.Outcomes.Count(LevelQuery, StatusEmpty, CategoryNone) != 1 ||
		stats.Outcomes.Count(LevelStrategy, StatusEmpty, CategoryNone) != 1 {
		t.Errorf("expected empty outcomes, got %v", stats.Outcomes.All())
	}
}

func TestRunner_ConflictingFlags(t *testing.T) {
	params := testParams()
	params.GridOnly = true
	params.TextOnly = true

	_, err := newTestRunner(&fakeAPI{}, params, &waitRecorder{}).Run(context.Background(), nil)
	if !errors.Is(err, ErrConfig) || Classify(err) != CategoryConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRunner_QuotaAbortsStrategy(t *testing.T) {
	api := &fakeAPI{nearby: func(req places.NearbyRequest) (*places.SearchResponse, error) {
		return nil, &places.StatusError{Endpoint: places.EndpointNearby, Status: places.StatusRequestDenied}
	}}
	params := testParams()
	params.GridOnly = true
	params.Zones = nil
	for i := 1; i <= 6; i++ {
		params.Zones = append(params.Zones, model.Zone{Index: i, Lat: centerLat + float64(i)/100, Lng: centerLng})
	}
	stats := &Stats{}

	res, err := newTestRunner(api, params, &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true, Stats: stats})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Combined) != 0 {
		t.Errorf("expected no records")
	}
	if len(api.nearbyCalls) != maxConsecutiveQuota {
		t.Errorf("expected %d calls before abort, got %d", maxConsecutiveQuota, len(api.nearbyCalls))
	}
	if stats.Outcomes.Count(LevelQuery, StatusFailed, CategoryQuota) != maxConsecutiveQuota {
		t.Errorf("unexpected outcomes %v", stats.Outcomes.All())
	}
	if stats.Outcomes.Count(LevelStrategy, StatusFailed, CategoryQuota) != 1 {
		t.Errorf("strategy should fail with quota, got %v", stats.Outcomes.All())
	}
}

func TestRunner_AllQueriesFailed(t *testing.T) {
	api := &fakeAPI{text: func(req places.TextRequest) (*places.SearchResponse, error) {
		return nil, fmt.Errorf("textsearch: %w: unexpected EOF", places.ErrMalformed)
	}}
	params := testParams()
	params.TextOnly = true
	params.Keywords = []string{"eye hospital", "eye clinic"}
	stats := &Stats{}

	if _, err := newTestRunner(api, params, &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true, Stats: stats}); err != nil {
		t.Fatalf("query failures must not fail the run: %v", err)
	}
	if stats.Outcomes.Failures()[CategoryDecode] != 3 {
		t.Errorf("failures = %v, want 2 query and 1 strategy decode failures", stats.Outcomes.Failures())
	}
	if stats.Outcomes.Count(LevelStrategy, StatusFailed, CategoryDecode) != 1 {
		t.Errorf("strategy should fail with decode")
	}
}

func TestRunner_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := bangaloreAPI()

	res, err := newTestRunner(api, testParams(), &waitRecorder{}).Run(ctx, &RunOptions{
		SuppressStderr: true,
		OnHospital:     func(model.Hospital) { cancel() },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || fmt.Sprint(ids(res.Combined)) != "[A]" {
		t.Fatalf("expected the partial result [A], got %+v", res)
	}
	if len(api.textCalls) != 0 {
		t.Error("text search should not start after cancellation")
	}
}

func TestRunner_ConcurrentMatchesSequential(t *testing.T) {
	seq, err := newTestRunner(bangaloreAPI(), testParams(), &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}

	params := testParams()
	params.Concurrency = 4
	par, err := newTestRunner(bangaloreAPI(), params, &waitRecorder{}).Run(context.Background(), &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("concurrent: %v", err)
	}

	a, b := ids(seq.Combined), ids(par.Combined)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) {
		t.Errorf("concurrent ids %v differ from sequential %v", b, a)
	}
	assertOutputInvariants(t, par.Combined, 100)
	for _, h := range par.Combined {
		if h.PlaceID == "A" && h.Provenance.Strategy != model.StrategyGrid {
			t.Errorf("grid copy of A should win, got %s", h.Provenance.Strategy)
		}
	}
}

// placesServer fakes the Places web service over HTTP.
func placesServer(t *testing.T) *httptest.Server {
	t.Helper()
	type loc = map[string]float64
	place := func(id string, lat, lng float64) map[string]any {
		return map[string]any{"place_id": id, "name": id, "geometry": map[string]any{"location": loc{"lat": lat, "lng": lng}}}
	}
	details := map[string]map[string]any{
		"p1": {"name": "Nethra", "user_ratings_total": 1500, "rating": 4.4, "geometry": map[string]any{"location": loc{"lat": 12.98, "lng": 77.6}}},
		"p2": {"name": "Drishti", "user_ratings_total": 80, "rating": 4.8, "geometry": map[string]any{"location": loc{"lat": 12.99, "lng": 77.6}}},
		"p3": {"name": "Prabha", "user_ratings_total": 640, "geometry": map[string]any{"location": loc{"lat": 12.9, "lng": 77.5}}},
		"p4": {"name": "Lotus", "user_ratings_total": 2100, "rating": 4.0, "website": "https://lotus.example", "geometry": map[string]any{"location": loc{"lat": 12.95, "lng": 77.65}}},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" {
			json.NewEncoder(w).Encode(map[string]any{"status": "REQUEST_DENIED"})
			return
		}
		switch r.URL.Path {
		case "/nearbysearch/json":
			if q.Get("pagetoken") == "next" {
				json.NewEncoder(w).Encode(map[string]any{"status": "OK", "results": []any{place("p3", 12.9, 77.5)}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status":          "OK",
				"next_page_token": "next",
				"results":         []any{place("p1", 12.98, 77.6), place("p2", 12.99, 77.6)},
			})
		case "/textsearch/json":
			json.NewEncoder(w).Encode(map[string]any{"status": "OK", "results": []any{place("p4", 12.95, 77.65), place("p1", 12.98, 77.6)}})
		case "/details/json":
			d, ok := details[q.Get("place_id")]
			if !ok {
				json.NewEncoder(w).Encode(map[string]any{"status": "NOT_FOUND"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"status": "OK", "result": d})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRunner_EndToEndHTTP(t *testing.T) {
	ts := placesServer(t)
	defer ts.Close()

	rec := &waitRecorder{}
	client := places.NewClient("k", places.Options{BaseURL: ts.URL, Wait: rec.wait})
	params := testParams()
	params.Zones = params.Zones[:1]

	res, err := newTestRunner(client, params, rec).Run(context.Background(), &RunOptions{SuppressStderr: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fmt.Sprint(ids(res.Combined)); got != "[p4 p1 p3]" {
		t.Errorf("combined = %s", got)
	}
	assertOutputInvariants(t, res.Combined, 100)

	p3 := res.Combined[2]
	if p3.Rating.Valid || p3.Website != model.NotAvailable {
		t.Errorf("absent fields should be sentinel, got %+v", p3)
	}
	if rec.count(DefaultPageDelay) != 1 {
		t.Errorf("expected one page delay, got %v", rec.waits)
	}
}
