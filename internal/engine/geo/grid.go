package geo

import (
	"math"

	"github.com/rendis/eyescan/internal/model"
)

const kmPerDegreeLat = 111.0

// offset moves a point by the given north/east distances in km.
func offset(lat, lng, northKm, eastKm float64) (float64, float64) {
	dLat := northKm / kmPerDegreeLat
	// Adjust longitude span for latitude
	dLng := eastKm / (kmPerDegreeLat * math.Cos(lat*math.Pi/180.0))
	return lat + dLat, lng + dLng
}

// RingZones creates search zones around a city center: the center itself, then
// for each ring the north, south, east and west points at ring*spacingKm, then the
// four first-ring diagonals. With rings=2 this yields the classic 13-point layout.
func RingZones(centerLat, centerLng, spacingKm float64, rings int) []model.Zone {
	zones := []model.Zone{{Lat: centerLat, Lng: centerLng}}
	if rings <= 0 || spacingKm <= 0 {
		return number(zones)
	}

	dirs := []struct{ north, east float64 }{
		{1, 0},  // N
		{-1, 0}, // S
		{0, 1},  // E
		{0, -1}, // W
	}
	for _, d := range dirs {
		for r := 1; r <= rings; r++ {
			dist := float64(r) * spacingKm
			lat, lng := offset(centerLat, centerLng, d.north*dist, d.east*dist)
			zones = append(zones, model.Zone{Lat: lat, Lng: lng})
		}
	}

	diagonals := []struct{ north, east float64 }{
		{1, 1},   // NE
		{1, -1},  // NW
		{-1, 1},  // SE
		{-1, -1}, // SW
	}
	for _, d := range diagonals {
		lat, lng := offset(centerLat, centerLng, d.north*spacingKm, d.east*spacingKm)
		zones = append(zones, model.Zone{Lat: lat, Lng: lng})
	}

	return number(zones)
}

// number assigns 1-based indexes in slice order.
func number(zones []model.Zone) []model.Zone {
	for i := range zones {
		zones[i].Index = i + 1
	}
	return zones
}

// NumberZones assigns 1-based indexes to zones loaded from a profile.
func NumberZones(zones []model.Zone) []model.Zone {
	out := make([]model.Zone, len(zones))
	copy(out, zones)
	return number(out)
}
