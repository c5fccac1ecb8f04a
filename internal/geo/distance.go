// Package geo holds distance math, normalized locations, map view models
// and the geolocation sources partners report into.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKM mean Earth radius used by Distance
const EarthRadiusKM = 6371.0

// Point a WGS84 coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports coordinates inside the WGS84 range
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String "lat, lng" with 6 decimals
func (p Point) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Lat, p.Lng)
}

// Distance great-circle distance in km (Haversine), rounded to 2 decimals
func Distance(a, b Point) float64 {
	return Round2(rawDistance(a, b))
}

func rawDistance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	sLat := math.Sin(dLat / 2)
	sLng := math.Sin(dLng / 2)
	h := sLat*sLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sLng*sLng
	return EarthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies within radiusKM of a
func Within(a, b Point, radiusKM float64) bool {
	return Distance(a, b) <= radiusKM
}

// Round2 rounds half away from zero to 2 decimals
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
