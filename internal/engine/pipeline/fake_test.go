package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rendis/eyescan/internal/engine/places"
)

const (
	centerLat = 12.9716
	centerLng = 77.5946
)

// fakeAPI is an in-memory Places API. Search behavior is supplied per test.
type fakeAPI struct {
	mu      sync.Mutex
	nearby  func(places.NearbyRequest) (*places.SearchResponse, error)
	text    func(places.TextRequest) (*places.SearchResponse, error)
	details map[string]*places.PlaceDetails

	nearbyCalls []places.NearbyRequest
	textCalls   []places.TextRequest
	detailCalls []string
}

func (f *fakeAPI) Nearby(ctx context.Context, req places.NearbyRequest) (*places.SearchResponse, error) {
	f.mu.Lock()
	f.nearbyCalls = append(f.nearbyCalls, req)
	f.mu.Unlock()
	if f.nearby == nil {
		return &places.SearchResponse{Status: places.StatusZeroResults}, nil
	}
	return f.nearby(req)
}

func (f *fakeAPI) Text(ctx context.Context, req places.TextRequest) (*places.SearchResponse, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, req)
	f.mu.Unlock()
	if f.text == nil {
		return &places.SearchResponse{Status: places.StatusZeroResults}, nil
	}
	return f.text(req)
}

func (f *fakeAPI) Details(ctx context.Context, placeID string, fields []string) (*places.PlaceDetails, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, placeID)
	d, ok := f.details[placeID]
	f.mu.Unlock()
	if !ok {
		return nil, &places.StatusError{Endpoint: places.EndpointDetails, Status: places.StatusNotFound}
	}
	return d, nil
}

func (f *fakeAPI) detailCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.detailCalls {
		if c == id {
			n++
		}
	}
	return n
}

// chain serves pages in order, linking them with continuation tokens.
func chain(pages ...[]places.PlaceResult) func(token string) *places.SearchResponse {
	return func(token string) *places.SearchResponse {
		i := 0
		if token != "" {
			fmt.Sscanf(token, "page-%d", &i)
		}
		if i >= len(pages) {
			return &places.SearchResponse{Status: places.StatusZeroResults}
		}
		resp := &places.SearchResponse{Status: places.StatusOK, Results: pages[i]}
		if i+1 < len(pages) {
			resp.NextPageToken = fmt.Sprintf("page-%d", i+1)
		}
		return resp
	}
}

func result(id string, lat, lng float64) places.PlaceResult {
	return places.PlaceResult{
		PlaceID:  id,
		Name:     "Search " + id,
		Geometry: &places.Geometry{Location: &places.LatLng{Lat: lat, Lng: lng}},
	}
}

func detail(name string, lat, lng float64, reviews int, rating float64) *places.PlaceDetails {
	return &places.PlaceDetails{
		Name:             name,
		FormattedAddress: name + " Road, Bengaluru",
		Geometry:         &places.Geometry{Location: &places.LatLng{Lat: lat, Lng: lng}},
		Rating:           ptr(rating),
		UserRatingsTotal: ptr(reviews),
	}
}

func ptr[T any](v T) *T { return &v }

// waitRecorder records requested waits instead of sleeping.
type waitRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	return ctx.Err()
}

func (w *waitRecorder) count(d time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, x := range w.waits {
		if x == d {
			n++
		}
	}
	return n
}
