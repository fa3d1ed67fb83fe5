package model

import (
	"fmt"
	"time"
)

// NotAvailable marks a text attribute the provider did not return.
const NotAvailable = "N/A"

// Strategy names the search method that surfaced a record.
type Strategy string

const (
	StrategyGrid   Strategy = "grid_search"
	StrategyText   Strategy = "text_search"
	StrategySample Strategy = "sample"
)

// Zone is a search origin. Index is 1-based in plan order.
type Zone struct {
	Index int     `json:"index" yaml:"-"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lng   float64 `json:"lng" yaml:"lng"`
}

// QueryDescriptor is one unit of search work produced by the planner.
type QueryDescriptor struct {
	Strategy Strategy
	Zone     Zone
	Keyword  string
	Query    string // free-text query, text strategy only
	Radius   int    // meters, 0 for text search
	MaxPages int
}

func (q QueryDescriptor) String() string {
	if q.Strategy == StrategyText {
		return fmt.Sprintf("text %q", q.Query)
	}
	return fmt.Sprintf("zone %d (%.4f, %.4f) %q", q.Zone.Index, q.Zone.Lat, q.Zone.Lng, q.Keyword)
}

// RawResult is a single search hit before enrichment.
type RawResult struct {
	PlaceID     string
	Name        string
	Lat         float64
	Lng         float64
	HasLocation bool
}

// Rating is a 0.0-5.0 star rating that may be absent.
type Rating struct {
	Value float64
	Valid bool
}

func NewRating(v float64) Rating { return Rating{Value: v, Valid: true} }

func (r Rating) String() string {
	if !r.Valid {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f", r.Value)
}

// Provenance records which strategy, zone and keyword surfaced a record.
type Provenance struct {
	Strategy Strategy `json:"search_method"`
	Zone     int      `json:"zone"`
	Keyword  string   `json:"keyword_found"`
	RunID    string   `json:"run_id,omitempty"`
}

// Hospital is a fully enriched place record. It is never mutated once aggregated.
type Hospital struct {
	PlaceID     string     `json:"place_id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Lat         float64    `json:"latitude"`
	Lng         float64    `json:"longitude"`
	Rating      Rating     `json:"-"`
	ReviewCount int        `json:"review_count"`
	Phone       string     `json:"phone"`
	Website     string     `json:"website"`
	OpenNow     *bool      `json:"open_now,omitempty"`
	Provenance  Provenance `json:"provenance"`
	Sightings   int        `json:"sightings"`
}

// SearchParams holds all configuration for a discovery run.
type SearchParams struct {
	City      string
	CenterLat float64
	CenterLng float64
	Zones     []Zone
	Keywords  []string
	PlaceType string

	Radius        int // meters per zone
	MinReviews    int
	GridMaxPages  int
	TextMaxPages  int
	MaxDistanceKm float64 // text search validator threshold
	PageDelay     time.Duration
	ZoneDelay     time.Duration
	Concurrency   int

	GridOnly bool
	TextOnly bool
}

func (p *SearchParams) RunGrid() bool { return !p.TextOnly }

func (p *SearchParams) RunText() bool { return !p.GridOnly }

// Method describes the strategy mix for summaries.
func (p *SearchParams) Method() string {
	switch {
	case p.GridOnly:
		return "Grid Search"
	case p.TextOnly:
		return "Text Search"
	default:
		return "Grid + Text Search"
	}
}
