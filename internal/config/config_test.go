package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

func TestDefaultProfile(t *testing.T) {
	p, err := DefaultProfile()
	if err != nil {
		t.Fatalf("DefaultProfile: %v", err)
	}
	if p.City != "Bangalore" || len(p.Keywords) != 8 || len(p.Zones) != 13 {
		t.Fatalf("unexpected profile: city=%q keywords=%d zones=%d", p.City, len(p.Keywords), len(p.Zones))
	}
	if p.PageDelay != 2*time.Second || p.ZoneDelay == nil || *p.ZoneDelay != 500*time.Millisecond {
		t.Errorf("delays = %v, %v", p.PageDelay, p.ZoneDelay)
	}

	params, err := p.Params(context.Background(), nil)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if params.CenterLat != 12.9716 || params.CenterLng != 77.5946 {
		t.Errorf("center = %v, %v", params.CenterLat, params.CenterLng)
	}
	if params.Radius != 15000 || params.MinReviews != 100 || params.PlaceType != "hospital" || params.MaxDistanceKm != 50 {
		t.Errorf("unexpected params %+v", params)
	}
	if params.GridMaxPages != 3 || params.TextMaxPages != 2 {
		t.Errorf("max pages = %d, %d", params.GridMaxPages, params.TextMaxPages)
	}
	for i, z := range params.Zones {
		if z.Index != i+1 {
			t.Errorf("zone %d has index %d", i, z.Index)
		}
	}
	if params.Zones[1].Lat != 13.05 {
		t.Errorf("second zone = %+v", params.Zones[1])
	}
}

type fakeLocator struct {
	calls int
	err   error
}

func (f *fakeLocator) GeocodeCity(ctx context.Context, city string) (orb.Point, orb.Bound, error) {
	f.calls++
	if f.err != nil {
		return orb.Point{}, orb.Bound{}, f.err
	}
	p := orb.Point{80.2702, 13.0836}
	return p, p.Bound(), nil
}

func TestProfile_GeocodedRingGrid(t *testing.T) {
	data := []byte(`
city: Chennai
keywords: [eye hospital]
min_reviews: 0
grid:
  rings: 1
  spacing_km: 5
`)
	p, err := ParseProfile(data)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	loc := &fakeLocator{}
	params, err := p.Params(context.Background(), loc)
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if loc.calls != 1 || params.CenterLat != 13.0836 || params.CenterLng != 80.2702 {
		t.Errorf("center not geocoded: %+v", params)
	}
	if len(params.Zones) != 9 {
		t.Errorf("one ring should yield 9 zones, got %d", len(params.Zones))
	}
	if params.MinReviews != 0 {
		t.Errorf("explicit min_reviews 0 should be kept, got %d", params.MinReviews)
	}
	if params.Radius != DefaultRadius || params.PlaceType != DefaultPlaceType {
		t.Errorf("defaults not applied: %+v", params)
	}
}

func TestProfile_GeocodeFailure(t *testing.T) {
	p, _ := ParseProfile([]byte("city: Atlantis\nkeywords: [eye hospital]\n"))
	if _, err := p.Params(context.Background(), &fakeLocator{err: errors.New("not found")}); err == nil {
		t.Error("expected geocoding error")
	}
	if _, err := p.Params(context.Background(), nil); err == nil {
		t.Error("expected error without center or locator")
	}
}

func TestParseProfile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no city", "keywords: [a]\n"},
		{"no keywords", "city: Pune\n"},
		{"bad yaml", "city: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadProfile_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pune.yaml")
	os.WriteFile(path, []byte("city: Pune\ncenter: {lat: 18.52, lng: 73.85}\nkeywords: [eye clinic]\n"), 0644)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.City != "Pune" || p.Center == nil || p.Center.Lat != 18.52 {
		t.Errorf("unexpected profile %+v", p)
	}
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProfile_ZoneDelay(t *testing.T) {
	base := "city: Pune\ncenter: {lat: 18.52, lng: 73.85}\nkeywords: [eye clinic]\n"
	tests := []struct {
		name  string
		extra string
		want  time.Duration
	}{
		{"absent uses default", "", DefaultZoneDelay},
		{"zero disables the pause", "zone_delay: 0s\n", 0},
		{"explicit", "zone_delay: 2s\n", 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProfile([]byte(base + tt.extra))
			if err != nil {
				t.Fatalf("ParseProfile: %v", err)
			}
			params, err := p.Params(context.Background(), nil)
			if err != nil {
				t.Fatalf("Params: %v", err)
			}
			if params.ZoneDelay != tt.want {
				t.Errorf("zone delay = %v, want %v", params.ZoneDelay, tt.want)
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "  ")
	if _, err := APIKey(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	t.Setenv(APIKeyEnv, "abc")
	if k, err := APIKey(); err != nil || k != "abc" {
		t.Errorf("APIKey = %q, %v", k, err)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("EYESCAN_MIN_REVIEWS=250\nEYESCAN_CONCURRENCY=oops\n"), 0644)
	t.Setenv("EYESCAN_MIN_REVIEWS", "")
	os.Unsetenv("EYESCAN_MIN_REVIEWS")
	t.Setenv("EYESCAN_CONCURRENCY", "")
	os.Unsetenv("EYESCAN_CONCURRENCY")

	LoadEnv(zerolog.Nop(), path)
	if got := MinReviews(100); got != 250 {
		t.Errorf("MinReviews = %d, want 250", got)
	}
	if got := Concurrency(1); got != 1 {
		t.Errorf("invalid value should fall back, got %d", got)
	}

	LoadEnv(zerolog.Nop(), filepath.Join(t.TempDir(), "missing.env"))
}
