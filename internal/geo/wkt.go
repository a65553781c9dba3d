package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// WKT encoding of polygons for persistence and broadcast payloads.
// POLYGON((lng lat, ...), (lng lat, ...)) — first ring is the outer
// boundary, the rest are holes, following the x=lng, y=lat convention.

var ErrInvalidWKT = errors.New("invalid WKT polygon")

// FormatWKT serializes a polygon to WKT. Rings are already closed by
// NewPolygon, so the closure point is preserved verbatim.
func FormatWKT(p *Polygon) string {
	var sb strings.Builder
	sb.WriteString("POLYGON(")
	for i, ring := range p.Rings {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j, pt := range ring {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(pt.Lng, 'f', -1, 64))
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatFloat(pt.Lat, 'f', -1, 64))
		}
		sb.WriteByte(')')
	}
	sb.WriteByte(')')
	return sb.String()
}

// ParseWKT parses a POLYGON string back into a validated polygon.
func ParseWKT(s string) (*Polygon, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "POLYGON") {
		return nil, fmt.Errorf("%w: missing POLYGON prefix", ErrInvalidWKT)
	}
	body := strings.TrimSpace(strings.TrimPrefix(s, "POLYGON"))
	if len(body) < 2 || body[0] != '(' || body[len(body)-1] != ')' {
		return nil, fmt.Errorf("%w: unbalanced parentheses", ErrInvalidWKT)
	}
	body = body[1 : len(body)-1]

	var rings [][]Point
	for _, rawRing := range splitRings(body) {
		ring, err := parseRing(rawRing)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	return NewPolygon(rings)
}

// splitRings splits "(...), (...)" into the individual ring bodies.
func splitRings(body string) []string {
	var rings []string
	depth := 0
	start := -1
	for i, c := range body {
		switch c {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				rings = append(rings, body[start:i])
			}
		}
	}
	return rings
}

func parseRing(s string) ([]Point, error) {
	parts := strings.Split(s, ",")
	ring := make([]Point, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: bad coordinate %q", ErrInvalidWKT, part)
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWKT, err)
		}
		ring = append(ring, Point{Lat: lat, Lng: lng})
	}
	return ring, nil
}
