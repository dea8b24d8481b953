package geofence

import "math"

// EarthRadiusMeters is the mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// boundaryTolerance absorbs float round-off so a point placed exactly on the
// radius is still inside.
const boundaryTolerance = 1e-6

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180 &&
		!math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude)
}

// DistanceMeters returns the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WithinRadius reports whether point is at most radiusMeters from center.
func WithinRadius(point, center Point, radiusMeters float64) bool {
	return DistanceMeters(point, center) <= radiusMeters+boundaryTolerance
}

// Offset returns the point reached by moving meters north and east of p.
// Used for fixtures and diagnostics; accurate for the short distances a
// classroom geofence covers.
func Offset(p Point, northMeters, eastMeters float64) Point {
	dLat := northMeters / EarthRadiusMeters
	dLon := eastMeters / (EarthRadiusMeters * math.Cos(toRadians(p.Latitude)))
	return Point{
		Latitude:  p.Latitude + toDegrees(dLat),
		Longitude: p.Longitude + toDegrees(dLon),
	}
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
