// Package geo provides great-circle distance helpers used to match stations to
// forecast regions.
package geo

import "math"

const earthRadiusKm = 6371.0

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceKm returns the haversine distance between a and b in kilometres.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Nearest returns the index of the candidate closest to origin and its
// distance. Ties keep the first candidate in slice order. It returns -1 when
// candidates is empty.
func Nearest(origin Coordinate, candidates []Coordinate) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, c := range candidates {
		d := DistanceKm(origin, c)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
