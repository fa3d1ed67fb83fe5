package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rendis/eyescan/internal/model"
)

// FeatureCollection converts hospitals into point features carrying the tabular
// attributes as properties.
func FeatureCollection(hospitals []model.Hospital) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, h := range hospitals {
		f := geojson.NewFeature(orb.Point{h.Lng, h.Lat})
		f.ID = h.PlaceID
		f.Properties["name"] = h.Name
		f.Properties["address"] = h.Address
		f.Properties["review_count"] = h.ReviewCount
		if h.Rating.Valid {
			f.Properties["rating"] = h.Rating.Value
		}
		f.Properties["phone"] = h.Phone
		f.Properties["website"] = h.Website
		if h.OpenNow != nil {
			f.Properties["open_now"] = *h.OpenNow
		}
		f.Properties["zone"] = h.Provenance.Zone
		f.Properties["keyword_found"] = h.Provenance.Keyword
		f.Properties["search_method"] = string(h.Provenance.Strategy)
		f.Properties["sightings"] = h.Sightings
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes hospitals as a GeoJSON FeatureCollection to path.
func WriteGeoJSON(path string, hospitals []model.Hospital) error {
	data, err := json.MarshalIndent(FeatureCollection(hospitals), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
