package geospatial

import "math"

// EarthRadiusKm is the mean Earth radius used for all distance math.
const EarthRadiusKm = 6371.0

// boxPadDeg widens every box edge to absorb rounding in the distance math.
const boxPadDeg = 1e-9

// HaversineKm calculates the great-circle distance in kilometers between two points
// on a sphere of the given radius.
func HaversineKm(lat1, lon1, lat2, lon2, radiusKm float64) float64 {
	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dLat := phi2 - phi1
	dLon := toRad(lon2 - lon1)

	h := (1-math.Cos(dLat))/2 + math.Cos(phi1)*math.Cos(phi2)*(1-math.Cos(dLon))/2

	// Rounding can push h just outside [0,1] for identical or antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * math.Asin(math.Sqrt(h)) * radiusKm
}

// MaxDistanceKm is half the circumference of a sphere of radiusKm.
func MaxDistanceKm(radiusKm float64) float64 {
	return math.Pi * radiusKm
}

// BoundingBox returns the smallest latitude/longitude box containing every point
// within radiusKm of (lat, lon) on a sphere of EarthRadiusKm. The longitude
// half-width is taken at the latitude where the circle is widest, so no point of
// the circle falls outside. When the circle reaches a pole or the antimeridian
// the box spans every longitude.
func BoundingBox(lat, lon, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	delta := radiusKm / EarthRadiusKm
	if delta >= math.Pi {
		return -90, -180, 90, 180
	}

	latDelta := toDeg(delta) + boxPadDeg
	minLat = math.Max(-90, lat-latDelta)
	maxLat = math.Min(90, lat+latDelta)

	cosLat := math.Cos(toRad(lat))
	sinDelta := math.Sin(delta)
	if minLat == -90 || maxLat == 90 || sinDelta >= cosLat {
		return minLat, -180, maxLat, 180
	}

	lonDelta := toDeg(math.Asin(sinDelta/cosLat)) + boxPadDeg
	minLon = lon - lonDelta
	maxLon = lon + lonDelta
	if minLon < -180 || maxLon > 180 {
		return minLat, -180, maxLat, 180
	}
	return minLat, minLon, maxLat, maxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
