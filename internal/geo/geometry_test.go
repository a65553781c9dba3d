package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square returns an axis-aligned square ring from (lat0,lng0) to (lat1,lng1).
func square(lat0, lng0, lat1, lng1 float64) []Point {
	return []Point{
		{Lat: lat0, Lng: lng0},
		{Lat: lat0, Lng: lng1},
		{Lat: lat1, Lng: lng1},
		{Lat: lat1, Lng: lng0},
	}
}

func TestNewPolygon_ClosesOpenRings(t *testing.T) {
	p, err := NewPolygon([][]Point{square(0, 0, 1, 1)})
	require.NoError(t, err)

	ring := p.Outer()
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestNewPolygon_RejectsTooFewPoints(t *testing.T) {
	_, err := NewPolygon([][]Point{{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestContains_DonutSemantics(t *testing.T) {
	// Outer ring 35.0..35.1 x 126.0..126.1 with a hole around the centroid.
	p, err := NewPolygon([][]Point{
		square(35.0, 126.0, 35.1, 126.1),
		square(35.04, 126.04, 35.06, 126.06),
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lng float64
		want     bool
	}{
		{"centroid inside the hole", 35.05, 126.05, false},
		{"inside outer ring, outside hole", 35.02, 126.02, true},
		{"outside outer ring", 35.2, 126.2, false},
		{"inside outer ring, just past hole edge", 35.07, 126.05, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Contains(tt.lat, tt.lng))
		})
	}
}

func TestIsOutOfBound_BufferTolerance(t *testing.T) {
	p, err := NewPolygon([][]Point{square(35.0, 126.0, 35.1, 126.1)})
	require.NoError(t, err)

	// Point slightly outside the east edge, within ~5m.
	lat, lng := 35.05, 126.10003

	assert.True(t, IsOutOfBound(p, lat, lng, 0), "no buffer: out")
	assert.False(t, IsOutOfBound(p, lat, lng, MetersToDegrees(5)), "5m buffer absorbs jitter")
}

func TestIsOutOfBound_BufferMonotonicity(t *testing.T) {
	p, err := NewPolygon([][]Point{square(35.0, 126.0, 35.1, 126.1)})
	require.NoError(t, err)

	points := []Point{
		{Lat: 35.05, Lng: 126.05},
		{Lat: 35.05, Lng: 126.1001},
		{Lat: 35.15, Lng: 126.05},
		{Lat: 34.9999, Lng: 126.0},
	}
	buffers := []float64{0, MetersToDegrees(1), MetersToDegrees(5), MetersToDegrees(50)}

	for _, pt := range points {
		prevOut := IsOutOfBound(p, pt.Lat, pt.Lng, buffers[0])
		for _, b := range buffers[1:] {
			out := IsOutOfBound(p, pt.Lat, pt.Lng, b)
			if !prevOut {
				assert.False(t, out, "growing buffer must never turn an in-bound point out-of-bound")
			}
			prevOut = out
		}
	}
}

func TestIsNear_JailRange(t *testing.T) {
	jail, err := NewPolygon([][]Point{square(35.0, 126.0, 35.0005, 126.0005)})
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lng float64
		limit    float64
		want     bool
	}{
		{"inside the jail", 35.0002, 126.0002, 0, true},
		{"3m east of jail, 5m limit", 35.0002, 126.00053, MetersToDegrees(5), true},
		{"50m east of jail, 5m limit", 35.0002, 126.00095, MetersToDegrees(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNear(jail, tt.lat, tt.lng, tt.limit))
		})
	}
}

func TestHaversineMeters(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{"same point", 35.0, 126.0, 35.0, 126.0, 0, 0.001},
		{"about 50m east", 35.0, 126.0, 35.0, 126.00045, 50, 10},
		{"about 100m east", 35.0, 126.0, 35.0, 126.0009, 100, 20},
		{"one degree of latitude", 35.0, 126.0, 36.0, 126.0, 111195, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineMeters(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}
