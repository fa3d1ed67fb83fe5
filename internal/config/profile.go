package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/rendis/eyescan/internal/engine/geo"
	"github.com/rendis/eyescan/internal/model"
)

//go:embed profiles/bangalore.yaml
var defaultProfile []byte

// Defaults applied to fields a profile leaves empty.
const (
	DefaultPlaceType  = "hospital"
	DefaultRadius     = 15000
	DefaultMinReviews = 100
	DefaultRings      = 2
	DefaultSpacingKm  = 8.7
	DefaultZoneDelay  = 500 * time.Millisecond
)

type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Grid generates ring zones around the center when no explicit zones are given.
type Grid struct {
	Rings     int     `yaml:"rings"`
	SpacingKm float64 `yaml:"spacing_km"`
}

// Profile describes the search for one city.
type Profile struct {
	City          string         `yaml:"city"`
	Center        *Point         `yaml:"center"`
	Zones         []model.Zone   `yaml:"zones"`
	Grid          *Grid          `yaml:"grid"`
	Keywords      []string       `yaml:"keywords"`
	PlaceType     string         `yaml:"place_type"`
	Radius        int            `yaml:"radius"`
	MinReviews    *int           `yaml:"min_reviews"`
	MaxDistanceKm float64        `yaml:"max_distance_km"`
	GridMaxPages  int            `yaml:"grid_max_pages"`
	TextMaxPages  int            `yaml:"text_max_pages"`
	PageDelay     time.Duration  `yaml:"page_delay"`
	ZoneDelay     *time.Duration `yaml:"zone_delay"`
}

// DefaultProfile returns the embedded Bangalore profile.
func DefaultProfile() (Profile, error) {
	return ParseProfile(defaultProfile)
}

// LoadProfile reads a YAML profile from path, or the embedded default when path is empty.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}
	p.City = strings.TrimSpace(p.City)
	if p.City == "" {
		return Profile{}, fmt.Errorf("profile: city is required")
	}
	if len(p.Keywords) == 0 {
		return Profile{}, fmt.Errorf("profile: at least one keyword is required")
	}
	return p, nil
}

// CityLocator resolves a city name to coordinates.
type CityLocator interface {
	GeocodeCity(ctx context.Context, city string) (orb.Point, orb.Bound, error)
}

// Params converts the profile into search parameters. When the profile has no
// center, locator resolves it from the city name.
func (p Profile) Params(ctx context.Context, locator CityLocator) (model.SearchParams, error) {
	params := model.SearchParams{
		City:          p.City,
		Keywords:      p.Keywords,
		PlaceType:     p.PlaceType,
		Radius:        p.Radius,
		MinReviews:    DefaultMinReviews,
		MaxDistanceKm: p.MaxDistanceKm,
		GridMaxPages:  p.GridMaxPages,
		TextMaxPages:  p.TextMaxPages,
		PageDelay:     p.PageDelay,
		ZoneDelay:     DefaultZoneDelay,
		Concurrency:   1,
	}
	if p.MinReviews != nil {
		params.MinReviews = *p.MinReviews
	}
	if params.PlaceType == "" {
		params.PlaceType = DefaultPlaceType
	}
	if params.Radius <= 0 {
		params.Radius = DefaultRadius
	}
	if params.MaxDistanceKm <= 0 {
		params.MaxDistanceKm = geo.DefaultMaxDistanceKm
	}
	if p.ZoneDelay != nil {
		params.ZoneDelay = *p.ZoneDelay
	}

	switch {
	case p.Center != nil:
		params.CenterLat, params.CenterLng = p.Center.Lat, p.Center.Lng
	case locator != nil:
		center, _, err := locator.GeocodeCity(ctx, p.City)
		if err != nil {
			return params, fmt.Errorf("locating %s: %w", p.City, err)
		}
		params.CenterLat, params.CenterLng = center.Lat(), center.Lon()
	default:
		return params, fmt.Errorf("profile %s has no center and no geocoder is available", p.City)
	}

	if len(p.Zones) > 0 {
		params.Zones = geo.NumberZones(p.Zones)
	} else {
		rings, spacing := DefaultRings, DefaultSpacingKm
		if p.Grid != nil {
			rings = p.Grid.Rings
			if p.Grid.SpacingKm > 0 {
				spacing = p.Grid.SpacingKm
			}
		}
		params.Zones = geo.RingZones(params.CenterLat, params.CenterLng, spacing, rings)
	}
	return params, nil
}
