package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dublin = orb.Point{-6.2603, 53.3498}

func TestCircleClosedRing(t *testing.T) {
	ring := Circle(dublin, 500, 64)

	require.Len(t, ring, 65)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestCircleRadiusWithinTolerance(t *testing.T) {
	for _, radius := range []float64{100, 500, 2000} {
		ring := Circle(dublin, radius, 64)

		var sum float64
		for _, p := range ring[:len(ring)-1] {
			sum += Distance(dublin, p)
		}
		avg := sum / float64(len(ring)-1)

		// The equirectangular approximation stays well inside 1% at these radii.
		assert.InDelta(t, radius, avg, radius*0.01, "radius %v", radius)
	}
}

func TestCircleDefaultSteps(t *testing.T) {
	ring := Circle(dublin, 250, 0)
	assert.Len(t, ring, DefaultCircleSteps+1)
}

func TestCircleFeatureCollection(t *testing.T) {
	fc := CircleFeatureCollection(dublin, 300, 32)

	require.Len(t, fc.Features, 1)
	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.Len(t, poly[0], 33)
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, float64(100), ClampRadius(30))
	assert.Equal(t, float64(2000), ClampRadius(5000))
	assert.Equal(t, float64(750), ClampRadius(750))
}

func TestSnapRadius(t *testing.T) {
	assert.Equal(t, float64(750), SnapRadius(730))
	assert.Equal(t, float64(700), SnapRadius(712))
	assert.Equal(t, float64(100), SnapRadius(100))
}

func TestDistanceKnownPair(t *testing.T) {
	// Dublin city centre to a point ~one degree of longitude away.
	d := Distance(dublin, orb.Point{-6.2503, 53.3498})
	assert.InDelta(t, 665, d, 15) // ~665m per 0.01 deg lng at 53.35N
}
