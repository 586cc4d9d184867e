package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for all trip distances
const EarthRadiusKm = 6371.0

// Point is a WGS-84 coordinate in decimal degrees
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceKm calculates the great-circle distance between two GPS coordinates in kilometers.
// A missing point yields 0.
func DistanceKm(a, b *Point) float64 {
	if a == nil || b == nil {
		return 0
	}

	lat1Rad := toRadians(a.Latitude)
	lat2Rad := toRadians(b.Latitude)
	deltaLat := toRadians(b.Latitude - a.Latitude)
	deltaLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	// rounding can push h a hair outside [0, 1] for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// ValidCoordinates checks latitude and longitude ranges
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
