// Package sample bundles a small set of well-known Bangalore eye hospitals used
// when a live run returns nothing or when explicitly requested.
package sample

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rendis/eyescan/internal/engine/pipeline"
	"github.com/rendis/eyescan/internal/model"
)

//go:embed hospitals.json
var hospitalsJSON []byte

type record struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	PlaceID     string   `json:"place_id"`
	OpenNow     *bool    `json:"open_now"`
}

// All returns every bundled record in file order.
func All() ([]model.Hospital, error) {
	var records []record
	if err := json.Unmarshal(hospitalsJSON, &records); err != nil {
		return nil, fmt.Errorf("decoding sample data: %w", err)
	}

	hospitals := make([]model.Hospital, 0, len(records))
	for _, r := range records {
		h := model.Hospital{
			PlaceID:     r.PlaceID,
			Name:        orNA(r.Name),
			Address:     orNA(r.Address),
			Lat:         r.Latitude,
			Lng:         r.Longitude,
			ReviewCount: r.ReviewCount,
			Phone:       orNA(r.Phone),
			Website:     orNA(r.Website),
			OpenNow:     r.OpenNow,
			Provenance:  model.Provenance{Strategy: model.StrategySample},
			Sightings:   1,
		}
		if r.Rating != nil {
			h.Rating = model.NewRating(*r.Rating)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, nil
}

// Load returns the records with at least minReviews reviews, most reviewed first.
func Load(minReviews int) ([]model.Hospital, error) {
	all, err := All()
	if err != nil {
		return nil, err
	}
	hospitals := pipeline.FilterReviews(all, minReviews)
	pipeline.SortByReviews(hospitals)
	return hospitals, nil
}

func orNA(s string) string {
	if s == "" {
		return model.NotAvailable
	}
	return s
}
