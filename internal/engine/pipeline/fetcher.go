package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendis/eyescan/internal/engine/places"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/ratelimit"
)

const (
	// DefaultPageDelay is the minimum wait before a continuation token becomes usable.
	DefaultPageDelay    = 2 * time.Second
	defaultTokenRetries = 3
)

// Searcher is the search half of the Places API.
type Searcher interface {
	Nearby(ctx context.Context, req places.NearbyRequest) (*places.SearchResponse, error)
	Text(ctx context.Context, req places.TextRequest) (*places.SearchResponse, error)
}

// Page is one page of raw results. Number is 1-based.
type Page struct {
	Number int
	Items  []model.RawResult
}

// Fetcher follows continuation tokens for a single descriptor.
type Fetcher struct {
	api          Searcher
	budget       *ratelimit.Budget
	placeType    string
	pageDelay    time.Duration
	tokenRetries int
	log          zerolog.Logger
}

func NewFetcher(api Searcher, budget *ratelimit.Budget, placeType string, pageDelay time.Duration, log zerolog.Logger) *Fetcher {
	if pageDelay < DefaultPageDelay {
		pageDelay = DefaultPageDelay
	}
	return &Fetcher{
		api:          api,
		budget:       budget,
		placeType:    placeType,
		pageDelay:    pageDelay,
		tokenRetries: defaultTokenRetries,
		log:          log,
	}
}

// Fetch issues the search for q and follows continuation tokens until there are none
// or q.MaxPages pages were read. onPage is invoked for every page in order; an error
// from onPage stops the fetch. On a failed call the pages already delivered stand and
// the error is returned.
func (f *Fetcher) Fetch(ctx context.Context, q model.QueryDescriptor, onPage func(Page) error) (int, error) {
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	token := ""
	pages := 0
	for pages < maxPages {
		resp, err := f.page(ctx, q, token)
		if err != nil {
			return pages, fmt.Errorf("%s page %d: %w", q, pages+1, err)
		}
		pages++

		if len(resp.Results) == 0 {
			break
		}
		if err := onPage(Page{Number: pages, Items: rawResults(resp.Results)}); err != nil {
			return pages, err
		}

		token = resp.NextPageToken
		if token == "" || pages >= maxPages {
			break
		}
		f.log.Debug().Str("query", q.String()).Int("page", pages).Msg("following continuation token")
		if err := f.budget.Wait(ctx, f.pageDelay); err != nil {
			return pages, err
		}
	}
	return pages, nil
}

// page issues one search call. A continuation token rejected as INVALID_REQUEST is
// usually not active yet, so that call is retried with a growing delay.
func (f *Fetcher) page(ctx context.Context, q model.QueryDescriptor, token string) (*places.SearchResponse, error) {
	backoff := f.pageDelay
	for attempt := 0; ; attempt++ {
		if err := f.budget.Spend(ctx); err != nil {
			return nil, err
		}
		resp, err := f.search(ctx, q, token)
		if err == nil {
			return resp, nil
		}
		if token == "" || !places.IsStatus(err, places.StatusInvalidRequest) || attempt >= f.tokenRetries {
			return nil, err
		}
		f.log.Warn().Str("query", q.String()).Int("attempt", attempt+1).Dur("backoff", backoff).
			Msg("continuation token not ready")
		if err := f.budget.Wait(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (f *Fetcher) search(ctx context.Context, q model.QueryDescriptor, token string) (*places.SearchResponse, error) {
	if q.Strategy == model.StrategyText {
		return f.api.Text(ctx, places.TextRequest{Query: q.Query, PageToken: token})
	}
	return f.api.Nearby(ctx, places.NearbyRequest{
		Lat:       q.Zone.Lat,
		Lng:       q.Zone.Lng,
		Radius:    q.Radius,
		Keyword:   q.Keyword,
		Type:      f.placeType,
		PageToken: token,
	})
}

func rawResults(results []places.PlaceResult) []model.RawResult {
	out := make([]model.RawResult, 0, len(results))
	for _, r := range results {
		item := model.RawResult{PlaceID: r.PlaceID, Name: r.Name}
		if r.Geometry != nil && r.Geometry.Location != nil {
			item.Lat = r.Geometry.Location.Lat
			item.Lng = r.Geometry.Location.Lng
			item.HasLocation = true
		}
		out = append(out, item)
	}
	return out
}
