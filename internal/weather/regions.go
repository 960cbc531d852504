package weather

import "github.com/i474232898/ims-weather/internal/geo"

// DefaultRegions are the cities the forecast feeds are published for.
var DefaultRegions = []Region{
	{ID: 1, Name: "Jerusalem", Location: geo.Coordinate{Latitude: 31.7683, Longitude: 35.2137}},
	{ID: 2, Name: "Tel Aviv - Yafo", Location: geo.Coordinate{Latitude: 32.0853, Longitude: 34.7818}},
	{ID: 3, Name: "Haifa", Location: geo.Coordinate{Latitude: 32.7940, Longitude: 34.9896}},
	{ID: 4, Name: "Beer Sheva", Location: geo.Coordinate{Latitude: 31.2520, Longitude: 34.7915}},
	{ID: 5, Name: "Eilat", Location: geo.Coordinate{Latitude: 29.5577, Longitude: 34.9519}},
	{ID: 6, Name: "Tiberias", Location: geo.Coordinate{Latitude: 32.7922, Longitude: 35.5312}},
	{ID: 7, Name: "Safed", Location: geo.Coordinate{Latitude: 32.9646, Longitude: 35.4960}},
	{ID: 8, Name: "Nazareth", Location: geo.Coordinate{Latitude: 32.6996, Longitude: 35.3035}},
	{ID: 9, Name: "Afula", Location: geo.Coordinate{Latitude: 32.6078, Longitude: 35.2897}},
	{ID: 10, Name: "Ashdod", Location: geo.Coordinate{Latitude: 31.8014, Longitude: 34.6435}},
	{ID: 11, Name: "Ashkelon", Location: geo.Coordinate{Latitude: 31.6688, Longitude: 34.5743}},
	{ID: 12, Name: "Lod", Location: geo.Coordinate{Latitude: 31.9516, Longitude: 34.8953}},
	{ID: 13, Name: "Dead Sea", Location: geo.Coordinate{Latitude: 31.4615, Longitude: 35.3899}},
	{ID: 14, Name: "Mitzpe Ramon", Location: geo.Coordinate{Latitude: 30.6103, Longitude: 34.8014}},
	{ID: 15, Name: "Katzrin", Location: geo.Coordinate{Latitude: 32.9928, Longitude: 35.6893}},
}

// NearestRegion returns the region closest to c and its distance in km.
// Equidistant regions resolve to the first one in list order. ok is false
// only when regions is empty.
func NearestRegion(c geo.Coordinate, regions []Region) (region Region, distanceKm float64, ok bool) {
	coords := make([]geo.Coordinate, len(regions))
	for i, r := range regions {
		coords[i] = r.Location
	}
	idx, dist := geo.Nearest(c, coords)
	if idx < 0 {
		return Region{}, 0, false
	}
	return regions[idx], dist, true
}
