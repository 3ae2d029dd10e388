package geo

import "math"

// earthRadiusMeters is the WGS84 equatorial radius, the sphere used by the
// distance figures users see in the web client.
const earthRadiusMeters = 6378137.0

// DistanceMeters returns the great-circle distance between a and b using the
// haversine formula, rounded to the nearest metre.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Clamp rounding noise before asin.
	h = math.Min(1, math.Max(0, h))

	return math.Round(2 * earthRadiusMeters * math.Asin(math.Sqrt(h)))
}

// DistanceKm is DistanceMeters expressed in kilometres.
func DistanceKm(a, b Coordinate) float64 {
	return DistanceMeters(a, b) / 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
