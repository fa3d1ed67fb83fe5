package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// NominatimURL is the OSM search endpoint used to resolve city centers.
const NominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	DisplayName string   `json:"display_name"`
}

// Geocoder resolves a city name to its center and bounding box.
type Geocoder struct {
	BaseURL string
	Client  *http.Client
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		BaseURL: NominatimURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GeocodeCity returns the center point and bounds for a city using the OSM Nominatim API.
func (g *Geocoder) GeocodeCity(ctx context.Context, city string) (orb.Point, orb.Bound, error) {
	u := g.BaseURL + "?" + url.Values{
		"q":      {city},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "eyescan/0.1 (hospital discovery)")

	resp, err := g.Client.Do(req)
	if err != nil {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("city %q not found", city)
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("parsing latitude %q: %w", first.Lat, err)
	}
	lng, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return orb.Point{}, orb.Bound{}, fmt.Errorf("parsing longitude %q: %w", first.Lon, err)
	}
	center := orb.Point{lng, lat}

	bound := center.Bound()
	if bb := first.BoundingBox; len(bb) >= 4 {
		minLat, _ := strconv.ParseFloat(bb[0], 64)
		maxLat, _ := strconv.ParseFloat(bb[1], 64)
		minLng, _ := strconv.ParseFloat(bb[2], 64)
		maxLng, _ := strconv.ParseFloat(bb[3], 64)
		bound = orb.Bound{Min: orb.Point{minLng, minLat}, Max: orb.Point{maxLng, maxLat}}
	}

	return center, bound, nil
}

// SpanKm is the larger of the north-south and east-west extents of b.
func SpanKm(b orb.Bound) float64 {
	ns := DistanceKm(orb.Point{b.Min.Lon(), b.Min.Lat()}, orb.Point{b.Min.Lon(), b.Max.Lat()})
	mid := (b.Min.Lat() + b.Max.Lat()) / 2
	ew := DistanceKm(orb.Point{b.Min.Lon(), mid}, orb.Point{b.Max.Lon(), mid})
	if ns > ew {
		return ns
	}
	return ew
}
