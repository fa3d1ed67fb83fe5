package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DefaultMaxDistanceKm bounds text search results around the city center.
const DefaultMaxDistanceKm = 50.0

// DistanceKm returns the haversine distance between two points. orb.Point is [lng, lat].
func DistanceKm(a, b orb.Point) float64 {
	lat1, lng1 := a.Lat(), a.Lon()
	lat2, lng2 := b.Lat(), b.Lon()
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Validator rejects points farther than MaxKm from Center.
type Validator struct {
	Center orb.Point
	MaxKm  float64
}

// NewValidator builds a validator around lat/lng. A non-positive maxKm uses the default.
func NewValidator(lat, lng, maxKm float64) Validator {
	if maxKm <= 0 {
		maxKm = DefaultMaxDistanceKm
	}
	return Validator{Center: orb.Point{lng, lat}, MaxKm: maxKm}
}

// Accept reports whether the point lies within the threshold.
func (v Validator) Accept(lat, lng float64) bool {
	return DistanceKm(v.Center, orb.Point{lng, lat}) <= v.MaxKm
}
