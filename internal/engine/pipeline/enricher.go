package pipeline

import (
	"context"
	"fmt"

	"github.com/rendis/eyescan/internal/engine/places"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/ratelimit"
)

// DetailsFetcher is the details half of the Places API.
type DetailsFetcher interface {
	Details(ctx context.Context, placeID string, fields []string) (*places.PlaceDetails, error)
}

// Enricher turns raw search hits into full records.
type Enricher struct {
	api    DetailsFetcher
	budget *ratelimit.Budget
}

func NewEnricher(api DetailsFetcher, budget *ratelimit.Budget) *Enricher {
	return &Enricher{api: api, budget: budget}
}

// Enrich fetches details for item. Records without coordinates are rejected with
// ErrMissingField.
func (e *Enricher) Enrich(ctx context.Context, item model.RawResult, prov model.Provenance) (model.Hospital, error) {
	if item.PlaceID == "" {
		return model.Hospital{}, fmt.Errorf("search result %q: place_id: %w", item.Name, ErrMissingField)
	}
	if err := e.budget.Spend(ctx); err != nil {
		return model.Hospital{}, err
	}
	d, err := e.api.Details(ctx, item.PlaceID, places.DetailFields)
	if err != nil {
		return model.Hospital{}, fmt.Errorf("details %s: %w", item.PlaceID, err)
	}
	return toHospital(item, d, prov)
}

func toHospital(item model.RawResult, d *places.PlaceDetails, prov model.Provenance) (model.Hospital, error) {
	if d.Geometry == nil || d.Geometry.Location == nil {
		return model.Hospital{}, fmt.Errorf("details %s: geometry: %w", item.PlaceID, ErrMissingField)
	}

	h := model.Hospital{
		PlaceID:    item.PlaceID,
		Name:       orNA(d.Name, item.Name),
		Address:    orNA(d.FormattedAddress),
		Lat:        d.Geometry.Location.Lat,
		Lng:        d.Geometry.Location.Lng,
		Phone:      orNA(d.FormattedPhoneNumber),
		Website:    orNA(d.Website),
		Provenance: prov,
		Sightings:  1,
	}
	if d.Rating != nil {
		h.Rating = model.NewRating(*d.Rating)
	}
	if d.UserRatingsTotal != nil && *d.UserRatingsTotal > 0 {
		h.ReviewCount = *d.UserRatingsTotal
	}
	if d.OpeningHours != nil && d.OpeningHours.OpenNow != nil {
		open := *d.OpeningHours.OpenNow
		h.OpenNow = &open
	}
	return h, nil
}

// orNA returns the first non-empty value, or the sentinel.
func orNA(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return model.NotAvailable
}
