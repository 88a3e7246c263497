package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/samirrijal/geobubbles/internal/pkg/geospatial"
)

// GeometryPoint is the only GeoJSON geometry type a bubble location may carry.
const GeometryPoint = "Point"

var (
	ErrInvalidGeometryKind    = errors.New("invalid geometry kind")
	ErrInvalidCoordinateArity = errors.New("invalid coordinate arity")
	ErrInvalidCoordinateRange = errors.New("invalid coordinate range")
)

// GeoPoint is the stored GeoJSON form of a location: coordinates are [lon, lat].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// Coordinate is a validated (lat, lon) pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates lat ∈ [-90,90] and lon ∈ [-180,180].
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v", ErrInvalidCoordinateRange, lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v", ErrInvalidCoordinateRange, lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// ToCoordinate converts a stored point into a runtime coordinate.
func ToCoordinate(p GeoPoint) (Coordinate, error) {
	if p.Type != GeometryPoint {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidGeometryKind, p.Type)
	}
	if len(p.Coordinates) != 2 {
		return Coordinate{}, fmt.Errorf("%w: got %d values", ErrInvalidCoordinateArity, len(p.Coordinates))
	}
	return NewCoordinate(p.Coordinates[1], p.Coordinates[0])
}

// FromCoordinate builds the stored form of c.
func FromCoordinate(c Coordinate) GeoPoint {
	return GeoPoint{Type: GeometryPoint, Coordinates: []float64{c.Lon, c.Lat}}
}

// Coordinate is shorthand for ToCoordinate(p).
func (p GeoPoint) Coordinate() (Coordinate, error) {
	return ToCoordinate(p)
}

// DistanceTo returns the great-circle distance to b on a sphere of radiusKm.
func (c Coordinate) DistanceTo(b Coordinate, radiusKm float64) float64 {
	return geospatial.HaversineKm(c.Lat, c.Lon, b.Lat, b.Lon, radiusKm)
}

// DistanceKm returns the great-circle distance between a and b on the mean Earth sphere.
func DistanceKm(a, b Coordinate) float64 {
	return a.DistanceTo(b, geospatial.EarthRadiusKm)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsAround returns the search box of radiusKm around c.
func BoundsAround(c Coordinate, radiusKm float64) Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(c.Lat, c.Lon, radiusKm)
	return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}
