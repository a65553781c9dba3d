// Package geo provides pure geometry for geofence evaluation: polygon
// containment with holes, buffered containment, and great-circle distance.
// Coordinates are WGS84 degrees; like the boundary data itself, buffer and
// proximity limits are expressed in degrees (0.00001 is roughly 1 meter).
package geo

import (
	"errors"
	"math"
)

const earthRadiusMeters = 6371000.0

// DegreesPerMeter converts a meter tolerance into the degree space the
// polygon math operates in. Approximation at mid latitudes; good enough
// for GPS-jitter sized buffers.
const DegreesPerMeter = 1.0 / 111320.0

var ErrTooFewPoints = errors.New("polygon ring needs at least 3 points")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is one outer ring optionally followed by hole rings. A point
// inside the outer ring but inside any hole is not contained (donut
// semantics). Rings are stored closed: first point == last point.
type Polygon struct {
	Rings [][]Point
}

// NewPolygon validates and closes each ring. Each ring needs at least 3
// distinct points; the closing point is appended when missing.
func NewPolygon(rings [][]Point) (*Polygon, error) {
	if len(rings) == 0 {
		return nil, errors.New("polygon needs at least one ring")
	}
	closed := make([][]Point, 0, len(rings))
	for _, ring := range rings {
		if len(ring) < 3 {
			return nil, ErrTooFewPoints
		}
		r := make([]Point, len(ring))
		copy(r, ring)
		if r[0] != r[len(r)-1] {
			r = append(r, r[0])
		}
		closed = append(closed, r)
	}
	return &Polygon{Rings: closed}, nil
}

// Outer returns the outer ring.
func (p *Polygon) Outer() []Point {
	return p.Rings[0]
}

// Contains reports whether the point falls inside the polygon. Holes are
// excluded: inside the outer ring but inside any hole ring is false.
func (p *Polygon) Contains(lat, lng float64) bool {
	if !ringContains(p.Rings[0], lat, lng) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if ringContains(hole, lat, lng) {
			return false
		}
	}
	return true
}

// IsOutOfBound reports whether the point falls outside the polygon grown
// outward by buffer degrees. The buffer gives players tolerance near the
// edge so GPS jitter does not trigger false warnings.
func IsOutOfBound(p *Polygon, lat, lng, buffer float64) bool {
	return !containsBuffered(p, lat, lng, buffer)
}

// IsNear reports whether the point falls within limit degrees of the target
// polygon. Used for jail-rescue range checks.
func IsNear(target *Polygon, lat, lng, limit float64) bool {
	return containsBuffered(target, lat, lng, limit)
}

// containsBuffered tests containment against the polygon expanded by dist:
// either properly contained, or within dist of any ring segment. Growing
// dist can only turn an outside point inside, never the reverse.
func containsBuffered(p *Polygon, lat, lng, dist float64) bool {
	if p.Contains(lat, lng) {
		return true
	}
	if dist <= 0 {
		return false
	}
	for _, ring := range p.Rings {
		for i := 0; i < len(ring)-1; i++ {
			if pointSegmentDistance(lat, lng, ring[i], ring[i+1]) <= dist {
				return true
			}
		}
	}
	return false
}

// ringContains is a standard ray-casting point-in-polygon test over a
// closed ring, working in raw degree space.
func ringContains(ring []Point, lat, lng float64) bool {
	inside := false
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		if (a.Lat > lat) != (b.Lat > lat) {
			x := (b.Lng-a.Lng)*(lat-a.Lat)/(b.Lat-a.Lat) + a.Lng
			if lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// pointSegmentDistance returns the degree-space distance from (lat, lng)
// to the segment a-b.
func pointSegmentDistance(lat, lng float64, a, b Point) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(lng-a.Lng, lat-a.Lat)
	}
	t := ((lng-a.Lng)*dx + (lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	px := a.Lng + t*dx
	py := a.Lat + t*dy
	return math.Hypot(lng-px, lat-py)
}

// HaversineMeters returns the great-circle distance between two points in
// meters. Spherical model; matches GPS precision, no ellipsoid correction.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// MetersToDegrees converts a meter tolerance to degrees for buffer and
// proximity parameters.
func MetersToDegrees(m float64) float64 {
	return m * DegreesPerMeter
}
